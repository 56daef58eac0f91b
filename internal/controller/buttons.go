package controller

import (
	"fmt"

	"cheesecave/internal/models"
	"cheesecave/internal/state"
)

// Press dispatches a button event: it steps the menu, re-arms the return to
// the general info screen and debounces the display refresh.
func (c *Controller) Press(b models.Button) state.Transition {
	c.idle.Stop()

	tr := c.dev.Press(b)
	c.rec.ButtonPress(b)
	c.recordTransition(tr)
	c.log.Debugw("button_pressed", "button", b, "from", tr.From, "to", tr.To)

	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return tr
	}

	c.idle.Reset(c.cfg.MenuReturnDelay(), c.returnToGeneralInfo)
	c.RequestRefresh()
	return tr
}

func (c *Controller) returnToGeneralInfo() {
	if from := c.dev.Mode(); c.dev.SetMode(models.ModeGeneralInfo) {
		c.events.Record(models.EventModeChange, "menu timed out", map[string]any{
			"from": from.String(),
			"to":   models.ModeGeneralInfo.String(),
		})
	}
	c.display.Trigger()
}

func (c *Controller) recordTransition(tr state.Transition) {
	switch tr.Effect {
	case state.EffectModeChanged:
		c.events.Record(models.EventModeChange, fmt.Sprintf("menu %s -> %s", tr.From, tr.To), map[string]any{
			"from":   tr.From.String(),
			"to":     tr.To.String(),
			"button": string(tr.Button),
		})
	case state.EffectDesiredHumidity:
		c.events.Record(models.EventDesiredHumidity, fmt.Sprintf("desired humidity set to %.0f%%", tr.DesiredHumidity), map[string]any{
			"desired_humidity": tr.DesiredHumidity,
		})
	case state.EffectWaterEmpty:
		c.events.Record(models.EventWaterEmpty, "tank reported empty", nil)
	case state.EffectWaterRefilled:
		c.events.Record(models.EventWaterRefilled, "tank refilled, run time reset", nil)
	}
}
