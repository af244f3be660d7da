package internaldefs

import (
	gdprAuth "github.com/MrEthical07/gdprAuth"
)

// OutcomeKey is the label distinguishing the series of one family.
const OutcomeKey = "outcome"

// Series binds one engine counter to an outcome label value. An empty
// Outcome means the family has a single unlabelled series.
type Series struct {
	ID      gdprAuth.MetricID
	Outcome string
}

// CounterFamily is one exported counter name with its series.
type CounterFamily struct {
	Name   string
	Help   string
	Series []Series
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   gdprAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "gdprauth_audit_dropped_total"

// CounterFamilies lists every exported counter family in render order.
var CounterFamilies = []CounterFamily{
	{
		Name: "gdprauth_login_total",
		Help: "Password logins by outcome.",
		Series: []Series{
			{gdprAuth.MetricLoginChallengeIssued, "challenge_issued"},
			{gdprAuth.MetricLoginFailure, "invalid_credentials"},
			{gdprAuth.MetricLoginUnconfirmed, "email_unconfirmed"},
			{gdprAuth.MetricLoginRateLimited, "rate_limited"},
		},
	},
	{
		Name: "gdprauth_otp_verify_total",
		Help: "Second-factor code submissions by outcome.",
		Series: []Series{
			{gdprAuth.MetricOTPSuccess, "success"},
			{gdprAuth.MetricOTPFailure, "rejected"},
			{gdprAuth.MetricOTPExhausted, "exhausted"},
		},
	},
	{
		Name: "gdprauth_refresh_total",
		Help: "Refresh token rotations by outcome.",
		Series: []Series{
			{gdprAuth.MetricRefreshSuccess, "success"},
			{gdprAuth.MetricRefreshFailure, "rejected"},
		},
	},
	{
		Name:   "gdprauth_logout_total",
		Help:   "Logout requests.",
		Series: []Series{{gdprAuth.MetricLogout, ""}},
	},
	{
		Name: "gdprauth_register_total",
		Help: "Registrations by outcome.",
		Series: []Series{
			{gdprAuth.MetricRegisterSuccess, "success"},
			{gdprAuth.MetricRegisterDuplicate, "duplicate"},
			{gdprAuth.MetricRegisterConsentMissing, "consent_missing"},
		},
	},
	{
		Name: "gdprauth_email_confirm_total",
		Help: "Email confirmations by outcome.",
		Series: []Series{
			{gdprAuth.MetricEmailConfirmSuccess, "success"},
			{gdprAuth.MetricEmailConfirmFailure, "rejected"},
		},
	},
	{
		Name:   "gdprauth_delivery_failure_total",
		Help:   "Notification emails that could not be sent.",
		Series: []Series{{gdprAuth.MetricDeliveryFailure, ""}},
	},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: gdprAuth.MetricResolveLatency, Name: "gdprauth_resolve_latency_seconds", Help: "Pseudonym reverse lookup latency."},
	{ID: gdprAuth.MetricRefreshLatency, Name: "gdprauth_refresh_latency_seconds", Help: "Refresh token rotation latency."},
}

// HistogramBounds are the le label values of the engine buckets.
var HistogramBounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// CumulativeBuckets pads raw to eight buckets and returns running totals.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
