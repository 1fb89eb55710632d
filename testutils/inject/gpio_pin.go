package inject

import (
	"context"

	"go.viam.com/vs10xx/components/board"
)

// GPIOPin is an injected GPIOPin.
type GPIOPin struct {
	board.GPIOPin
	SetFunc func(ctx context.Context, high bool, extra map[string]interface{}) error
	GetFunc func(ctx context.Context, extra map[string]interface{}) (bool, error)

	setCap []interface{}
	getCap []interface{}
}

// Set calls the injected Set or the real version.
func (gp *GPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.setCap = []interface{}{ctx, high}
	if gp.SetFunc == nil {
		return gp.GPIOPin.Set(ctx, high, extra)
	}
	return gp.SetFunc(ctx, high, extra)
}

// SetCap returns the last parameters received by Set, and then clears them.
func (gp *GPIOPin) SetCap() []interface{} {
	if gp == nil {
		return nil
	}
	defer func() { gp.setCap = nil }()
	return gp.setCap
}

// Get calls the injected Get or the real version.
func (gp *GPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.getCap = []interface{}{ctx}
	if gp.GetFunc == nil {
		return gp.GPIOPin.Get(ctx, extra)
	}
	return gp.GetFunc(ctx, extra)
}

// GetCap returns the last parameters received by Get, and then clears them.
func (gp *GPIOPin) GetCap() []interface{} {
	if gp == nil {
		return nil
	}
	defer func() { gp.getCap = nil }()
	return gp.getCap
}
