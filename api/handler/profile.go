package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/clisession/pkg/profile"
)

// ProfileView 设备家族概要
type ProfileView struct {
	Name           string            `json:"name"`
	Aliases        []string          `json:"aliases,omitempty"`
	SecretRequired bool              `json:"secret_required"`
	Modes          []string          `json:"modes"`
	Prompts        map[string]string `json:"prompts"`
}

// ProfileHandler 设备家族查询
type ProfileHandler struct {
	registry *profile.Registry
}

// NewProfileHandler 创建处理器
func NewProfileHandler(registry *profile.Registry) *ProfileHandler {
	return &ProfileHandler{registry: registry}
}

func view(p *profile.Profile) ProfileView {
	v := ProfileView{
		Name:           p.Name,
		Aliases:        p.Aliases,
		SecretRequired: p.SecretRequired,
		Prompts:        make(map[string]string),
	}
	for _, m := range p.Modes() {
		v.Modes = append(v.Modes, m.String())
		v.Prompts[m.String()] = p.Terminator(m)
	}
	return v
}

// List 全部已注册的家族
// @Router /api/v1/profiles [get]
func (h *ProfileHandler) List(c *gin.Context) {
	profiles := h.registry.Profiles()
	views := make([]ProfileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, view(p))
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "ok", Data: views})
}

// Get 按名称或别名查询
// @Router /api/v1/profiles/{name} [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.registry.Lookup(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "ok", Data: view(p)})
}
