package service

import (
	"context"
	"errors"
	"fmt"

	"cheesecave/internal/models"
)

var ErrUnknownButton = errors.New("unknown button")

type PanelService struct {
	app Appliance
}

func NewPanelService(app Appliance) *PanelService {
	return &PanelService{app: app}
}

// Press runs the same menu transition a physical press would.
func (s *PanelService) Press(ctx context.Context, button string) (PressResult, error) {
	if err := ctx.Err(); err != nil {
		return PressResult{}, err
	}
	if s.app == nil {
		return PressResult{}, ErrApplianceOffline
	}
	b, err := models.ParseButton(button)
	if err != nil {
		return PressResult{}, fmt.Errorf("%w: %v", ErrUnknownButton, err)
	}
	tr := s.app.Press(b)
	return PressResult{From: tr.From, To: tr.To, Snapshot: s.app.Snapshot()}, nil
}
