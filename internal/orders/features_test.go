package orders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
	"github.com/fjod/go_storefront/internal/domain"
)

var featureOpts = godog.Options{
	Output:      colors.Colored(os.Stdout),
	Format:      "progress",
	Paths:       []string{"features"},
	Randomize:   0,
	Concurrency: 1,
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeRefundScenario,
		Options:             &featureOpts,
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

// refundWorld holds one scenario's harness and the last operation error.
type refundWorld struct {
	h       *harness
	lastErr error
}

func initializeRefundScenario(ctx *godog.ScenarioContext) {
	w := &refundWorld{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		h, err := buildHarness()
		w.h, w.lastErr = h, nil
		return ctx, err
	})

	ctx.Step(`^the order collection is loaded$`, w.collectionLoaded)
	ctx.Step(`^the order collection is unreachable$`, w.collectionDown)
	ctx.Step(`^the order collection comes back$`, w.collectionUp)

	ctx.Step(`^the customer requests a refund for order "([^"]*)" because "([^"]*)"$`, w.requestRefund)
	ctx.Step(`^the admin approves the refund for order "([^"]*)"$`, w.approveRefund)
	ctx.Step(`^the customer submits return tracking "([^"]*)" for order "([^"]*)"$`, w.submitReturn)
	ctx.Step(`^the admin approves the return shipping for order "([^"]*)"$`, w.approveReturn)
	ctx.Step(`^the admin confirms the return of order "([^"]*)" was received$`, w.confirmReceived)
	ctx.Step(`^the admin processes the refund payment for order "([^"]*)"$`, w.processPayment)
	ctx.Step(`^the admin completes the refund for order "([^"]*)"$`, w.completeRefund)
	ctx.Step(`^the admin sets order "([^"]*)" to "([^"]*)"$`, w.setStatus)
	ctx.Step(`^pending changes are reconciled$`, w.reconcile)

	ctx.Step(`^order "([^"]*)" is "([^"]*)"$`, w.orderIs)
	ctx.Step(`^the payment of order "([^"]*)" is "([^"]*)"$`, w.paymentIs)
	ctx.Step(`^order "([^"]*)" is pending sync$`, w.orderPending)
	ctx.Step(`^order "([^"]*)" is synced$`, w.orderSynced)
	ctx.Step(`^the collection has order "([^"]*)" as "([^"]*)"$`, w.remoteOrderIs)
	ctx.Step(`^the operation fails with "([^"]*)"$`, w.operationFails)
	ctx.Step(`^the last notification is an? "([^"]*)"$`, w.lastNotification)
}

func (w *refundWorld) collectionLoaded() error {
	w.h.store.Load(context.Background())
	return nil
}

func (w *refundWorld) collectionDown() error {
	w.h.remote.setDown(true)
	return nil
}

func (w *refundWorld) collectionUp() error {
	w.h.remote.setDown(false)
	return nil
}

func (w *refundWorld) requestRefund(id, reason string) error {
	_, w.lastErr = w.h.lifecycle.SubmitRefundRequest(context.Background(), id, RefundInput{Reason: reason})
	return nil
}

func (w *refundWorld) approveRefund(id string) error {
	_, w.lastErr = w.h.lifecycle.ProcessRefundRequest(context.Background(), id, RefundApprove, "approved")
	return nil
}

func (w *refundWorld) submitReturn(tracking, id string) error {
	_, w.lastErr = w.h.lifecycle.SubmitReturnShippingInfo(context.Background(), id, ReturnShippingInput{
		TrackingNumber:  tracking,
		ShippingCompany: "GHN",
	})
	return nil
}

func (w *refundWorld) approveReturn(id string) error {
	_, w.lastErr = w.h.lifecycle.ApproveReturnShipping(context.Background(), id, ReturnApprovalInput{AdminResponse: "ok"})
	return nil
}

func (w *refundWorld) confirmReceived(id string) error {
	_, w.lastErr = w.h.lifecycle.ConfirmReturnShipmentReceived(context.Background(), id)
	return nil
}

func (w *refundWorld) processPayment(id string) error {
	_, w.lastErr = w.h.lifecycle.ProcessRefundPayment(context.Background(), id)
	return nil
}

func (w *refundWorld) completeRefund(id string) error {
	_, w.lastErr = w.h.lifecycle.CompleteRefund(context.Background(), id)
	return nil
}

func (w *refundWorld) setStatus(id, status string) error {
	_, w.lastErr = w.h.lifecycle.UpdateOrderStatus(context.Background(), id, domain.OrderStatus(status), "")
	return nil
}

func (w *refundWorld) reconcile() error {
	_, w.lastErr = w.h.lifecycle.Reconcile(context.Background())
	return w.lastErr
}

func (w *refundWorld) order(id string) (*domain.Order, error) {
	o, ok := w.h.store.Order(id)
	if !ok {
		return nil, fmt.Errorf("order %s not loaded", id)
	}
	return o, nil
}

func (w *refundWorld) orderIs(id, status string) error {
	o, err := w.order(id)
	if err != nil {
		return err
	}
	if string(o.Status) != status {
		return fmt.Errorf("order %s is %s, want %s", id, o.Status, status)
	}
	return nil
}

func (w *refundWorld) paymentIs(id, status string) error {
	o, err := w.order(id)
	if err != nil {
		return err
	}
	if string(o.PaymentStatus) != status {
		return fmt.Errorf("payment of order %s is %s, want %s", id, o.PaymentStatus, status)
	}
	return nil
}

func (w *refundWorld) orderPending(id string) error {
	return w.syncStateIs(id, domain.SyncStatePending)
}

func (w *refundWorld) orderSynced(id string) error {
	return w.syncStateIs(id, domain.SyncStateSynced)
}

func (w *refundWorld) syncStateIs(id string, want domain.SyncState) error {
	o, err := w.order(id)
	if err != nil {
		return err
	}
	if o.SyncState != want {
		return fmt.Errorf("order %s sync state is %s, want %s", id, o.SyncState, want)
	}
	return nil
}

func (w *refundWorld) remoteOrderIs(id, status string) error {
	o, ok := w.h.remote.order(id)
	if !ok {
		return fmt.Errorf("order %s missing from collection", id)
	}
	if string(o.Status) != status {
		return fmt.Errorf("collection has order %s as %s, want %s", id, o.Status, status)
	}
	return nil
}

func (w *refundWorld) operationFails(message string) error {
	if w.lastErr == nil {
		return fmt.Errorf("expected failure %q, operation succeeded", message)
	}
	if w.lastErr.Error() != message {
		return fmt.Errorf("error is %q, want %q", w.lastErr.Error(), message)
	}
	return nil
}

func (w *refundWorld) lastNotification(level string) error {
	n, ok := w.h.notes.Last()
	if !ok {
		return errors.New("no notification recorded")
	}
	if string(n.Level) != level {
		return fmt.Errorf("last notification is %s (%s), want %s", n.Level, n.Message, level)
	}
	return nil
}
