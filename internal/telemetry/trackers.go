package telemetry

import (
	"context"
	"maps"
)

// Event types emitted by the convenience trackers.
const (
	EventPageView            = "page_view"
	EventClick               = "click"
	EventFormSubmit          = "form_submit"
	EventError               = "error"
	EventButtonClick         = "button_click"
	EventFeatureUsage        = "feature_usage"
	EventMessageSent         = "message_sent"
	EventLoginAttempt        = "login_attempt"
	EventRegistrationAttempt = "registration_attempt"
)

// TrackPageView records a view of page reached from referrer (the previous path, "" if none).
func (d *Dispatcher) TrackPageView(ctx context.Context, page, referrer string) {
	d.Dispatch(ctx, EventPageView, Attributes{"page": page, "referrer": referrer})
}

// TrackClick records a click on an element. An empty elementID is sent as null.
func (d *Dispatcher) TrackClick(ctx context.Context, elementType, elementID string) {
	var id any
	if elementID != "" {
		id = elementID
	}
	d.Dispatch(ctx, EventClick, Attributes{"element_type": elementType, "element_id": id})
}

func (d *Dispatcher) TrackFormSubmit(ctx context.Context, formName string, success bool) {
	d.Dispatch(ctx, EventFormSubmit, Attributes{"form_name": formName, "success": success})
}

func (d *Dispatcher) TrackError(ctx context.Context, errorType, message string) {
	d.Dispatch(ctx, EventError, Attributes{"error_type": errorType, "error_message": message})
}

// TrackButtonClick records a named button press. An empty section is reported as "unknown".
func (d *Dispatcher) TrackButtonClick(ctx context.Context, buttonName, section string) {
	if section == "" {
		section = "unknown"
	}
	d.Dispatch(ctx, EventButtonClick, Attributes{"button_name": buttonName, "section": section})
}

// TrackFeatureUsage records use of a feature; details are merged after feature_name and may
// override it.
func (d *Dispatcher) TrackFeatureUsage(ctx context.Context, featureName string, details Attributes) {
	attrs := make(Attributes, len(details)+1)
	attrs["feature_name"] = featureName
	maps.Copy(attrs, details)
	d.Dispatch(ctx, EventFeatureUsage, attrs)
}

func (d *Dispatcher) TrackMessageSent(ctx context.Context, messageLength int) {
	d.Dispatch(ctx, EventMessageSent, Attributes{"message_length": messageLength, "section": "message_center"})
}

// TrackLogin records a login attempt. username is only included on success.
func (d *Dispatcher) TrackLogin(ctx context.Context, success bool, username string) {
	d.Dispatch(ctx, EventLoginAttempt, attemptAttrs(success, username))
}

// TrackRegistration records a registration attempt. username is only included on success.
func (d *Dispatcher) TrackRegistration(ctx context.Context, success bool, username string) {
	d.Dispatch(ctx, EventRegistrationAttempt, attemptAttrs(success, username))
}

func attemptAttrs(success bool, username string) Attributes {
	attrs := Attributes{"success": success}
	if success {
		attrs["username"] = username
	}
	return attrs
}
