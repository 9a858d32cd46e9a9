package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vitalink-io/vitalink/web/entity"
	"github.com/vitalink-io/vitalink/web/service"
)

// UserAdminController exposes the admin-only account management routes.
// Every mutation restamps updated_at through the service, so an edit made
// on either node wins the next replication cycle.
type UserAdminController struct {
	userAdminService *service.UserAdminService
}

func NewUserAdminController(g *gin.RouterGroup, userAdminService *service.UserAdminService) *UserAdminController {
	a := &UserAdminController{userAdminService: userAdminService}
	a.initRouter(g)
	return a
}

func (a *UserAdminController) initRouter(g *gin.RouterGroup) {
	g.GET("/list", a.listUsers)
	g.GET("/:id", a.getUser)
	g.PUT("/:id", a.updateUser)
	g.DELETE("/:id", a.deleteUser)
}

func (a *UserAdminController) listUsers(c *gin.Context) {
	users, err := a.userAdminService.ListUsers()
	if err != nil {
		jsonMsg(c, I18nWeb(c, "fail"), err)
		return
	}
	jsonObj(c, users, nil)
}

func (a *UserAdminController) getUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
		return
	}

	user, err := a.userAdminService.GetUser(id)
	if err != nil {
		if a.userAdminService.IsNotFound(err) {
			pureJsonMsg(c, http.StatusNotFound, false, I18nWeb(c, "api.users.notFound"))
			return
		}
		jsonMsg(c, I18nWeb(c, "fail"), err)
		return
	}
	jsonObj(c, user, nil)
}

func (a *UserAdminController) updateUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
		return
	}

	var form entity.UserUpdateForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
		return
	}

	user, err := a.userAdminService.UpdateUser(id, form.FirstName, form.LastName, form.Role, form.Password)
	if err != nil {
		if a.userAdminService.IsNotFound(err) {
			pureJsonMsg(c, http.StatusNotFound, false, I18nWeb(c, "api.users.notFound"))
			return
		}
		pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
		return
	}
	jsonMsgObj(c, I18nWeb(c, "api.users.updated"), user, nil)
}

func (a *UserAdminController) deleteUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
		return
	}

	user, err := a.userAdminService.GetUser(id)
	if err != nil {
		if a.userAdminService.IsNotFound(err) {
			pureJsonMsg(c, http.StatusNotFound, false, I18nWeb(c, "api.users.notFound"))
			return
		}
		jsonMsg(c, I18nWeb(c, "fail"), err)
		return
	}

	if err := a.userAdminService.DeleteUser(id); err != nil {
		if errors.Is(err, service.ErrLastAdmin) {
			pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "api.users.lastAdmin"))
			return
		}
		pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
		return
	}
	jsonMsg(c, I18nWeb(c, "api.users.deleted", "username=="+user.Username), nil)
}
