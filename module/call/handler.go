package call

import (
	"net/http"

	"CorpChat/logger"
	midsec "CorpChat/middleware/security"
	callmodel "CorpChat/module/call/model"
	callsvc "CorpChat/module/call/service"
	"CorpChat/service/realtime"
	errs "CorpChat/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler 呼叫 REST 入口：建档后经实时层推 incomingCall，
// 后续 SDP/ICE 直接走 WS relay，不再经过这里。
type Handler struct {
	reg *realtime.Registry
}

func NewHandler(reg *realtime.Registry) *Handler {
	return &Handler{reg: reg}
}

type createCallReq struct {
	CalleeID string `json:"calleeId" binding:"required"`
	CallType string `json:"callType" binding:"required"` // audio / video
}

// HandlerCreateCall POST /api/calls
func (h *Handler) HandlerCreateCall(c *gin.Context) {
	caller := c.GetString(midsec.CtxUserIDKey)
	var req createCallReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	rec := &callmodel.Call{
		CallerID: caller,
		CalleeID: req.CalleeID,
		CallType: req.CallType,
	}
	if err := callsvc.CreateCall(c.Request.Context(), rec); err != nil {
		logger.Errorf("[call] create caller=%s err=%v", caller, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}

	// 被叫不在线就静默：呼叫方靠超时把状态落成 missed
	h.reg.Deliver(req.CalleeID,
		realtime.MustMarshal(realtime.FrameIncomingCall, map[string]any{"call": rec}))

	c.JSON(http.StatusOK, gin.H{"call": rec})
}

type updateCallReq struct {
	Status string `json:"status" binding:"required"`
}

// HandlerUpdateCall PUT /api/calls/:callId
func (h *Handler) HandlerUpdateCall(c *gin.Context) {
	callID := c.Param("callId")
	var req updateCallReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	switch req.Status {
	case callmodel.CallAccepted, callmodel.CallRejected, callmodel.CallEnded, callmodel.CallMissed:
	default:
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("bad status "+req.Status))
		return
	}

	if err := callsvc.UpdateCallStatus(c.Request.Context(), callID, req.Status); err != nil {
		if errs.ErrRecordNotFound.Is(err) {
			c.JSON(http.StatusNotFound, errs.ErrRecordNotFound.WithDetail(callID))
			return
		}
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, gin.H{"callId": callID, "status": req.Status})
}
