package message

// Result is the uniform success/failure response shape. Failures always look
// like {"success":false,"error":"..."} regardless of the error's origin.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK returns a bare success result.
func OK() Result {
	return Result{Success: true}
}

// OKMessage returns a success result with a user-facing message.
func OKMessage(msg string) Result {
	return Result{Success: true, Message: msg}
}

// Fail shapes an error string into the uniform failure response.
func Fail(errMsg string) Result {
	return Result{Success: false, Error: errMsg}
}

// FailErr shapes an error into the uniform failure response.
func FailErr(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// User is the token-free projection of a session exposed to UI contexts.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthStateResult answers GET_AUTH_STATE. User is null when signed out.
// Token material is never included.
type AuthStateResult struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user"`
}

// SettingsResult answers GET_SETTINGS and UPDATE_SETTINGS.
type SettingsResult struct {
	Success          bool     `json:"success"`
	StatusCategories []string `json:"status_categories"`
}
