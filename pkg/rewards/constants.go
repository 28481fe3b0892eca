package rewards

const (
	operationLoadAccount = "load_account"
	operationGrant       = "grant"
	operationSubmit      = "submit_redemption"
	operationProcess     = "process_redemption"
	operationSyncTier    = "sync_tier"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)
