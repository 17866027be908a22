package messenger

import (
	"context"
	"errors"
	"log/slog"
)

// Delivery records the outcome of sending one artifact to one recipient
// on one backend.
type Delivery struct {
	Backend   string
	Recipient string
	Err       error
}

// DeliveryReport aggregates the per-recipient outcomes of a dispatch.
type DeliveryReport struct {
	Deliveries []Delivery
}

// Failed counts the deliveries that ended in error.
func (r DeliveryReport) Failed() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// AllOK reports whether no delivery failed. A dispatch with no backends
// configured is vacuously successful.
func (r DeliveryReport) AllOK() bool { return r.Failed() == 0 }

// Route pairs a backend with its delivery settings.
type Route struct {
	Backend Backend

	// Template is the notification text with {channel} and {title}
	// placeholders.
	Template string

	// SendMessage controls whether the notification text accompanies
	// the artifact.
	SendMessage bool
}

// Dispatcher fans one artifact out to every recipient of every routed
// backend. A failure for one recipient never blocks delivery to the
// others.
type Dispatcher struct {
	routes []Route
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over the given routes.
func NewDispatcher(routes []Route, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{routes: routes, logger: logger}
}

// Dispatch sends the artifact, and per route its notification message,
// to every recipient. Every attempt is recorded in the report; errors
// are contained per recipient.
func (d *Dispatcher) Dispatch(ctx context.Context, a Artifact) DeliveryReport {
	var report DeliveryReport

	for _, route := range d.routes {
		text := RenderTemplate(route.Template, a.ChannelName, a.Title)

		for _, recipient := range route.Backend.Recipients() {
			err := d.deliver(ctx, route, recipient, text, a.Paths())

			report.Deliveries = append(report.Deliveries, Delivery{
				Backend:   route.Backend.Name(),
				Recipient: recipient.Name,
				Err:       err,
			})

			logger := d.logger.With(
				slog.String("backend", route.Backend.Name()),
				slog.String("recipient", recipient.Name),
				slog.String("title", a.Title))
			if err != nil {
				logger.Error("delivery failed", slog.Any("error", err))
			} else {
				logger.Info("delivered")
			}
		}
	}

	return report
}

// deliver sends the notification and then every artifact file. File
// sends are independent: a failed audio upload does not stop the video
// upload, and all failures are reported together.
func (d *Dispatcher) deliver(ctx context.Context, route Route, r Recipient, text string, paths []string) error {
	var errs []error
	if route.SendMessage {
		if err := route.Backend.SendMessage(ctx, r, text); err != nil {
			errs = append(errs, err)
		}
	}
	for _, path := range paths {
		if err := route.Backend.SendFile(ctx, r, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
