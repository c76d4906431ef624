package service

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/example/canteen/internal/datamodels/product"
	"github.com/example/canteen/internal/datamodels/supply"
	"github.com/example/canteen/internal/notify"
)

func TestRequestAndApproveSupply(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.seedProduct(t, "filler", "1", 0)
	}
	p := f.seedProduct(t, "golubtsy", "110", 7)
	require.Equal(t, int64(4), p.ID)

	sp, err := f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: 4, Amount: 20})
	require.NoError(t, err)
	assert.Equal(t, "1320", sp.Cost.String())
	assert.Equal(t, supply.StatusPending, sp.Status)
	assert.Equal(t, int64(7), f.stockOf(t, p.ID), "request alone must not touch stock")

	requested := f.events.named(notify.SupplyRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, []notify.Audience{notify.Admin}, requested[0].Audiences)

	decided, err := f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: sp.ID, Approve: true})
	require.NoError(t, err)
	assert.Equal(t, supply.StatusApproved, decided.Status)
	assert.Equal(t, int64(20), decided.ApprovedAmount)
	assert.Equal(t, int64(27), f.stockOf(t, p.ID))

	_, err = f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: sp.ID, Approve: true})
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	_, err = f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: sp.ID, Approve: false})
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	assert.Equal(t, int64(27), f.stockOf(t, p.ID))
}

func TestSupplyCostRounding(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "tea", "2.35", 0)

	sp, err := f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: p.ID, Amount: 3})
	require.NoError(t, err)
	// 2.35 * 0.6 * 3 = 4.23
	assert.Equal(t, "4", sp.Cost.String())
}

func TestDecideSupplyOverrideAmountAndReject(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "kompot", "10", 1)

	a, err := f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: p.ID, Amount: 50})
	require.NoError(t, err)
	b, err := f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: p.ID, Amount: 50})
	require.NoError(t, err)

	amount := int64(12)
	got, err := f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: a.ID, Approve: true, Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.ApprovedAmount)

	got, err = f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: b.ID, Approve: false})
	require.NoError(t, err)
	assert.Equal(t, supply.StatusRejected, got.Status)
	assert.NotNil(t, got.DecidedAt)
	assert.Equal(t, int64(13), f.stockOf(t, p.ID))

	zero := int64(0)
	c, err := f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: p.ID, Amount: 5})
	require.NoError(t, err)
	_, err = f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: c.ID, Approve: true, Amount: &zero})
	assert.ErrorIs(t, err, ErrInvalidInput)

	pending, err := f.supplies.ListSupplies(context.Background(), f.cook, supply.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c.ID, pending[0].ID)
}

func TestDecideSupplyConcurrentAppliesOnce(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "bliny", "30", 0)
	sp, err := f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: p.ID, Amount: 20})
	require.NoError(t, err)

	var ok, dup atomic.Int64
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: sp.ID, Approve: true})
			switch {
			case err == nil:
				ok.Add(1)
			case KindOf(err) == KindAlreadyDecided:
				dup.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(1), ok.Load())
	assert.Equal(t, int64(7), dup.Load())
	assert.Equal(t, int64(20), f.stockOf(t, p.ID))
}

func TestSupplyPermissionsAndValidation(t *testing.T) {
	f := newFixture(t)
	student := f.seedStudent(t, "s", "0")
	p := f.seedProduct(t, "x", "1", 0)

	_, err := f.supplies.RequestSupply(context.Background(), student, SupplyRequest{ProductID: p.ID, Amount: 1})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: p.ID, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: 777, Amount: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	sp, err := f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: p.ID, Amount: 1})
	require.NoError(t, err)
	_, err = f.supplies.DecideSupply(context.Background(), f.cook, SupplyDecision{SupplyID: sp.ID, Approve: true})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: 999, Approve: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupplyAmountsCannotOverflowStock(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "mors", "10", 10)

	_, err := f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: p.ID, Amount: math.MaxInt64})
	assert.ErrorIs(t, err, ErrInvalidInput)

	sp, err := f.supplies.RequestSupply(context.Background(), f.cook, SupplyRequest{ProductID: p.ID, Amount: 20})
	require.NoError(t, err)
	huge := int64(math.MaxInt64)
	_, err = f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: sp.ID, Approve: true, Amount: &huge})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, int64(10), f.stockOf(t, p.ID))

	// 库存已接近上限时，批准会被拒绝且补货单保持待审批
	require.NoError(t, f.db.Model(&product.Product{}).Where("id = ?", p.ID).Update("stock", int64(math.MaxInt64-5)).Error)
	_, err = f.supplies.DecideSupply(context.Background(), f.admin, SupplyDecision{SupplyID: sp.ID, Approve: true})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, int64(math.MaxInt64-5), f.stockOf(t, p.ID))

	pending, err := f.supplies.ListSupplies(context.Background(), f.admin, supply.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, sp.ID, pending[0].ID)
}
