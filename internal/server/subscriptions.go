package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"famplan/internal/model"
)

// subscriptionReq accepts both the standard PushSubscription JSON shape
// (nested keys) and the flattened legacy shape, plus legacy field
// aliases. Normalization into the canonical record happens here, before
// anything else sees the payload.
type subscriptionReq struct {
	Endpoint string `json:"endpoint" binding:"required"`

	Keys *struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys,omitempty"`
	P256dh string `json:"p256dh,omitempty"`
	Auth   string `json:"auth,omitempty"`

	Owner    string `json:"owner,omitempty"`
	Identity string `json:"identity,omitempty"` // legacy alias for owner

	ReceiveAll bool     `json:"receive_all,omitempty"`
	Watch      []string `json:"watch,omitempty"`

	LeadMinutes *int `json:"lead_minutes,omitempty"`
	Offset      *int `json:"offset,omitempty"` // legacy alias, minutes
}

func (r subscriptionReq) normalize(coerce func(int) int) model.Subscription {
	sub := model.Subscription{
		Endpoint:   strings.TrimSpace(r.Endpoint),
		P256dh:     strings.TrimSpace(r.P256dh),
		Auth:       strings.TrimSpace(r.Auth),
		Owner:      strings.ToLower(strings.TrimSpace(r.Owner)),
		ReceiveAll: r.ReceiveAll,
		Watch:      r.Watch,
	}
	if r.Keys != nil {
		if sub.P256dh == "" {
			sub.P256dh = strings.TrimSpace(r.Keys.P256dh)
		}
		if sub.Auth == "" {
			sub.Auth = strings.TrimSpace(r.Keys.Auth)
		}
	}
	if sub.Owner == "" {
		sub.Owner = strings.ToLower(strings.TrimSpace(r.Identity))
	}
	lead := 0
	if r.LeadMinutes != nil {
		lead = *r.LeadMinutes
	} else if r.Offset != nil {
		lead = *r.Offset
	}
	sub.LeadMinutes = coerce(lead)
	return sub
}

func (s *Server) upsertSubscription(c *gin.Context) {
	var req subscriptionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	sub := req.normalize(func(v int) int {
		return model.CoerceLead(v, s.leads.LeadMinutes, s.leads.DefaultLeadMinutes)
	})
	// An owner, when given, must be someone the roster recognizes;
	// anonymous installs (no owner) are allowed and receive everything.
	if sub.Owner != "" && s.roster != nil && !s.roster.Known(sub.Owner) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown owner"})
		return
	}
	if err := s.store.UpsertSubscription(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) deleteSubscription(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := s.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// vapidKey hands clients the application public key for subscribing.
func (s *Server) vapidKey(c *gin.Context) {
	if s.push == nil || !s.push.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": s.push.VAPIDPublicKey()})
}
