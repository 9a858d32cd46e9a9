package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/web/entity"
	"github.com/vitalink-io/vitalink/web/service"
)

// AuthController exposes login, registration and session endpoints.
type AuthController struct {
	userService *service.UserService
}

// NewAuthController mounts the public auth routes on public and the
// session-guarded ones on protected.
func NewAuthController(public, protected *gin.RouterGroup, userService *service.UserService) *AuthController {
	a := &AuthController{userService: userService}
	a.initRouter(public, protected)
	return a
}

func (a *AuthController) initRouter(public, protected *gin.RouterGroup) {
	public.POST("/login", a.login)
	public.POST("/register", a.register)

	protected.POST("/logout", a.logout)
	protected.GET("/verify", a.verify)
}

func (a *AuthController) login(c *gin.Context) {
	var form entity.LoginForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "api.login.missingFields"))
		return
	}
	if form.Username == "" || form.Password == "" {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "api.login.missingFields"))
		return
	}

	token, user, err := a.userService.Login(form.Username, form.Password)
	if err != nil {
		if errors.Is(err, service.ErrBadCredentials) {
			logger.Warningf("wrong credentials for %q, IP: %q", form.Username, getRemoteIp(c))
			pureJsonMsg(c, http.StatusUnauthorized, false, I18nWeb(c, "api.login.badCredentials"))
			return
		}
		jsonMsg(c, I18nWeb(c, "api.login.badCredentials"), err)
		return
	}

	logger.Infof("%s logged in successfully, IP: %s", user.Username, getRemoteIp(c))
	jsonMsgObj(c, I18nWeb(c, "api.login.success"), gin.H{
		"token": token,
		"user":  service.ToUserDTO(user),
	}, nil)
}

func (a *AuthController) register(c *gin.Context) {
	var form entity.RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
		return
	}

	user, err := a.userService.Register(form.Username, form.Password, form.FirstName, form.LastName, form.Role)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "api.register.usernameTaken"))
			return
		}
		pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
		return
	}

	jsonMsgObj(c, I18nWeb(c, "api.register.success"), service.ToUserDTO(user), nil)
}

func (a *AuthController) logout(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if err := a.userService.Logout(token); err != nil {
		logger.Warning("logout:", err)
	}
	jsonMsg(c, I18nWeb(c, "api.logout.success"), nil)
}

func (a *AuthController) verify(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		pureJsonMsg(c, http.StatusUnauthorized, false, I18nWeb(c, "api.unauthorized"))
		return
	}
	jsonObj(c, service.ToUserDTO(user), nil)
}
