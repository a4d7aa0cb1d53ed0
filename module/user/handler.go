package user

import (
	"net/http"

	"CorpChat/global"
	"CorpChat/logger"
	usermodel "CorpChat/module/user/model"
	usersvc "CorpChat/module/user/service"
	"CorpChat/service/realtime"
	errs "CorpChat/tools/errs"
	sec "CorpChat/tools/security"

	"github.com/gin-gonic/gin"
)

type loginReq struct {
	UserID   string `json:"userId" binding:"required"`
	Nickname string `json:"nickname"`
}

// HandlerLogin 登录并签发访问令牌。
// 凭证校验不在本层（外部IAM负责），这里只建档+发token。
func HandlerLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	u := &usermodel.User{
		UserID:   req.UserID,
		Nickname: req.Nickname,
		Status:   realtime.StatusOffline,
	}
	if err := usersvc.UpsertUser(c.Request.Context(), u); err != nil {
		logger.Errorf("[login] upsert user=%s err=%v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}

	opts := sec.DefaultOptions(global.JWTSecret())
	token, exp, err := sec.Generate(opts, req.UserID)
	if err != nil {
		logger.Errorf("[login] sign token user=%s err=%v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"expireAt": exp.UnixMilli(),
		"user":     gin.H{"userId": req.UserID, "nickname": req.Nickname},
	})
}

// HandlerContacts GET 联系人列表
func HandlerContacts(c *gin.Context) {
	users, err := usersvc.ListUsers(c.Request.Context(), 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
