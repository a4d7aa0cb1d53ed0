package chat

import (
	"net/http"
	"strconv"

	"CorpChat/logger"
	chatmodel "CorpChat/module/chat/model"
	chatsvc "CorpChat/module/chat/service"
	"CorpChat/service/realtime"
	errs "CorpChat/tools/errs"

	midsec "CorpChat/middleware/security"

	"github.com/gin-gonic/gin"
)

// MessageSink 消息落库后的事件出口（NATS桥）；nil=不挂接
type MessageSink interface {
	PublishMessage(msg any)
}

// Handler REST 消息入口：先持久化，成功后经实时层推送。
// 实时层在这里只做通知，不做存储。
type Handler struct {
	reg  *realtime.Registry
	sink MessageSink
}

func NewHandler(reg *realtime.Registry, sink MessageSink) *Handler {
	return &Handler{reg: reg, sink: sink}
}

type sendMessageReq struct {
	ReceiverID  string `json:"receiverId" binding:"required"`
	Content     string `json:"content" binding:"required"`
	ContentType int32  `json:"contentType"`
}

// HandlerSendMessage POST /api/messages —— 直聊。
// 落库成功后：接收方推 newMessage，发送方回 messageSent 回执。
func (h *Handler) HandlerSendMessage(c *gin.Context) {
	sender := c.GetString(midsec.CtxUserIDKey)
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	msg := &chatmodel.Message{
		SenderID:    sender,
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		ContentType: req.ContentType,
	}
	if err := chatsvc.SaveMessage(c.Request.Context(), msg); err != nil {
		logger.Errorf("[chat] save message sender=%s err=%v", sender, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}

	// 推送是尽力而为：接收方不在线就静默跳过，等它下次拉历史
	h.reg.Deliver(req.ReceiverID,
		realtime.MustMarshal(realtime.FrameNewMessage, map[string]any{"message": msg}))
	h.reg.Deliver(sender,
		realtime.MustMarshal(realtime.FrameMessageSent, map[string]any{"message": msg}))
	if h.sink != nil {
		h.sink.PublishMessage(msg)
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type sendGroupMessageReq struct {
	Content     string `json:"content" binding:"required"`
	ContentType int32  `json:"contentType"`
}

// HandlerSendGroupMessage POST /api/groups/:groupId/messages —— 群聊。
// 落库后向除发送者外的全部群成员 fan-out groupMessage。
func (h *Handler) HandlerSendGroupMessage(c *gin.Context) {
	sender := c.GetString(midsec.CtxUserIDKey)
	groupID := c.Param("groupId")
	var req sendGroupMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	members, err := chatsvc.GetGroupMembers(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, errs.ErrRecordNotFound.WithDetail(groupID))
		return
	}

	msg := &chatmodel.Message{
		SenderID:    sender,
		GroupID:     groupID,
		Content:     req.Content,
		ContentType: req.ContentType,
	}
	if err := chatsvc.SaveMessage(c.Request.Context(), msg); err != nil {
		logger.Errorf("[chat] save group message group=%s err=%v", groupID, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}

	data := realtime.MustMarshal(realtime.FrameGroupMessage, map[string]any{"message": msg})
	h.reg.DeliverMany(members, sender, data)
	h.reg.Deliver(sender,
		realtime.MustMarshal(realtime.FrameMessageSent, map[string]any{"message": msg}))
	if h.sink != nil {
		h.sink.PublishMessage(msg)
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// HandlerHistory GET /api/messages?peerId=&groupId=&limit=
func (h *Handler) HandlerHistory(c *gin.Context) {
	me := c.GetString(midsec.CtxUserIDKey)
	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)

	if groupID := c.Query("groupId"); groupID != "" {
		msgs, err := chatsvc.ListGroupMessages(c.Request.Context(), groupID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
		return
	}

	peer := c.Query("peerId")
	if peer == "" {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("peerId or groupId required"))
		return
	}
	msgs, err := chatsvc.ListDirectMessages(c.Request.Context(), me, peer, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type createGroupReq struct {
	Name      string   `json:"name" binding:"required"`
	MemberIDs []string `json:"memberIds"`
}

// HandlerCreateGroup POST /api/groups
func (h *Handler) HandlerCreateGroup(c *gin.Context) {
	owner := c.GetString(midsec.CtxUserIDKey)
	var req createGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	g := &chatmodel.Group{
		Name:      req.Name,
		OwnerID:   owner,
		MemberIDs: req.MemberIDs,
	}
	if err := chatsvc.CreateGroup(c.Request.Context(), g); err != nil {
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": g})
}
