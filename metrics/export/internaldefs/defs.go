package internaldefs

import (
	shopauth "github.com/solmarkt/shopauth"
)

// CounterDef defines a public type used by shopauth APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   shopauth.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the storefront auth core.
var CounterDefs = []CounterDef{
	{ID: shopauth.MetricAuthAttemptAllowed, Name: "shopauth_auth_attempt_allowed_total", Help: "Authentication attempts admitted by the limiter."},
	{ID: shopauth.MetricAuthRateLimited, Name: "shopauth_auth_rate_limited_total", Help: "Rate-limited authentication attempts."},
	{ID: shopauth.MetricCheckoutAttemptAllowed, Name: "shopauth_checkout_attempt_allowed_total", Help: "Checkout attempts admitted by the limiter."},
	{ID: shopauth.MetricCheckoutRateLimited, Name: "shopauth_checkout_rate_limited_total", Help: "Rate-limited checkout attempts."},
	{ID: shopauth.MetricTwoFactorSetupStarted, Name: "shopauth_two_factor_setup_started_total", Help: "Two-factor setup flows started."},
	{ID: shopauth.MetricTwoFactorEnabled, Name: "shopauth_two_factor_enabled_total", Help: "Two-factor setup flows completed."},
	{ID: shopauth.MetricTwoFactorDisabled, Name: "shopauth_two_factor_disabled_total", Help: "Two-factor disable operations."},
	{ID: shopauth.MetricTwoFactorSuccess, Name: "shopauth_two_factor_success_total", Help: "Successful TOTP verifications."},
	{ID: shopauth.MetricTwoFactorFailure, Name: "shopauth_two_factor_failure_total", Help: "Failed TOTP verifications."},
	{ID: shopauth.MetricSessionInitialized, Name: "shopauth_session_initialized_total", Help: "Session controllers reaching a settled state."},
	{ID: shopauth.MetricSessionSignedIn, Name: "shopauth_session_signed_in_total", Help: "Processed signed-in session changes."},
	{ID: shopauth.MetricSessionSignedOut, Name: "shopauth_session_signed_out_total", Help: "Processed signed-out session changes."},
	{ID: shopauth.MetricSessionRefreshed, Name: "shopauth_session_refreshed_total", Help: "Processed token-refresh session changes."},
	{ID: shopauth.MetricProfileFetchFailure, Name: "shopauth_profile_fetch_failure_total", Help: "Failed profile fetches during session handling."},
	{ID: shopauth.MetricAccessGranted, Name: "shopauth_access_granted_total", Help: "Admin access checks that granted access."},
	{ID: shopauth.MetricAccessDenied, Name: "shopauth_access_denied_total", Help: "Admin access checks that denied access."},
}
