package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/config"
	"github.com/guess2/dailytrivia/internal/http/respond"
)

// ConfigHandler exposes the client-facing runtime configuration.
type ConfigHandler struct {
	apiBaseURL  string
	frontendURL string
	plans       []config.PlanConfig
}

// NewConfigHandler constructs a ConfigHandler from cfg.
func NewConfigHandler(cfg config.Config) *ConfigHandler {
	return &ConfigHandler{apiBaseURL: cfg.APIBaseURL, frontendURL: cfg.FrontendURL, plans: cfg.Stripe.Plans}
}

type clientConfig struct {
	APIBaseURL  string              `json:"apiBaseUrl"`
	FrontendURL string              `json:"frontendUrl"`
	Plans       []config.PlanConfig `json:"plans"`
}

// Get returns the client configuration.
func (h *ConfigHandler) Get(c *gin.Context) {
	plans := h.plans
	if plans == nil {
		plans = []config.PlanConfig{}
	}
	respond.OK(c, clientConfig{APIBaseURL: h.apiBaseURL, FrontendURL: h.frontendURL, Plans: plans})
}
