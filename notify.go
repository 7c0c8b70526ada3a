// FILE: notify.go
// Package main – Fire-and-forget chat webhook notifications.
//
// Adapts the teacher's postSlack one-shot webhook post into a general
// incoming-webhook sink, formatting a short line per lifecycle event.
// Failures are logged and swallowed; never propagated to the decision path.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier posts lifecycle events to a chat-style incoming webhook.
type Notifier struct {
	webhookURL string
	hc         *http.Client
}

// NewNotifier returns a notifier targeting webhookURL. An empty URL makes
// every post a silent no-op.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{webhookURL: webhookURL, hc: &http.Client{Timeout: 3 * time.Second}}
}

func (n *Notifier) post(msg string) {
	if n.webhookURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	body, _ := json.Marshal(map[string]string{"text": msg})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := n.hc.Do(req)
	if err != nil {
		logWarn("notify", "post failed", "err", err)
		return
	}
	defer res.Body.Close()
}

// OrderPlaced notifies a new position.
func (n *Notifier) OrderPlaced(mode PositionMode, dir OrderSide, entry, sl, tp1, tp2 float64) {
	n.post(fmt.Sprintf("[%s] %s opened entry=%.2f sl=%.2f tp1=%.2f tp2=%.2f", mode, dir, entry, sl, tp1, tp2))
}

// TP1Hit notifies a partial take-profit event.
func (n *Notifier) TP1Hit(dealID string, pnl float64, reopened bool) {
	n.post(fmt.Sprintf("TP1 %s pnl=%.2f reopened=%v", dealID, pnl, reopened))
}

// TP2Hit notifies a full take-profit close.
func (n *Notifier) TP2Hit(dealID string, pnl float64) {
	n.post(fmt.Sprintf("TP2 %s pnl=%.2f", dealID, pnl))
}

// SLHit notifies a stop-loss close.
func (n *Notifier) SLHit(dealID string, pnl float64) {
	n.post(fmt.Sprintf("SL %s pnl=%.2f", dealID, pnl))
}

// BrokerClosed notifies a reconciler-recovered broker-initiated close.
func (n *Notifier) BrokerClosed(dealID string, pnl float64) {
	n.post(fmt.Sprintf("BROKER_CLOSE %s pnl=%.2f", dealID, pnl))
}

// Fatal notifies an unrecoverable startup failure.
func (n *Notifier) Fatal(reason string) {
	n.post(fmt.Sprintf("FATAL: %s", reason))
}
