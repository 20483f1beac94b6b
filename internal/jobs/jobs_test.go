package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/jobs"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type runnerMock struct{ mock.Mock }

func (m *runnerMock) RequestPickups(ctx context.Context, fields shipper.Fields) ([]shipper.PickupConfirmation, error) {
	args := m.Called(ctx, fields)
	confs, _ := args.Get(0).([]shipper.PickupConfirmation)
	return confs, args.Error(1)
}

func (m *runnerMock) UpdateShipments(ctx context.Context, fields shipper.Fields) error {
	return m.Called(ctx, fields).Error(0)
}

func newManager(cfg jobs.Config, runner *runnerMock) *jobs.Manager {
	return jobs.NewManager(cfg, runner, otelzap.New(zap.NewNop()))
}

func TestRunPickups_ContinuesAfterFailure(t *testing.T) {
	runner := &runnerMock{}
	runner.On("RequestPickups", mock.Anything, shipper.Fields{"shipper": "UPS"}).Return(nil, errors.New("ups down")).Once()
	runner.On("RequestPickups", mock.Anything, shipper.Fields{"shipper": "DHL"}).Return([]shipper.PickupConfirmation{
		{LocationID: "W1", Reference: "C-1"},
		{LocationID: "W2", Err: errors.New("no slot")},
	}, nil).Once()

	m := newManager(jobs.Config{PickupCarriers: []string{"UPS", "DHL"}}, runner)
	err := m.RunPickups(context.Background())

	require.Error(t, err)
	assert.ErrorContains(t, err, "pickups UPS: ups down")
	assert.ErrorContains(t, err, "pickups DHL at W2: no slot")
	runner.AssertExpectations(t)
}

func TestRunTracking(t *testing.T) {
	runner := &runnerMock{}
	runner.On("UpdateShipments", mock.Anything, shipper.Fields{"shipper": "UPS"}).Return(nil).Once()
	runner.On("UpdateShipments", mock.Anything, shipper.Fields{"shipper": "DHL"}).Return(nil).Once()

	m := newManager(jobs.Config{TrackingCarriers: []string{"UPS", "DHL"}}, runner)
	require.NoError(t, m.RunTracking(context.Background()))
	runner.AssertExpectations(t)
}

func TestStartAll_InvalidSchedule(t *testing.T) {
	m := newManager(jobs.Config{PickupSchedule: "not a schedule"}, &runnerMock{})
	assert.Error(t, m.StartAll())
}

func TestStartAndStop(t *testing.T) {
	m := newManager(jobs.Config{PickupSchedule: "0 0 16 * * MON-FRI", TrackingSchedule: "0 */30 * * * *"}, &runnerMock{})
	require.NoError(t, m.StartAll())
	m.StopAll()
}
