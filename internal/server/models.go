package server

// HTTPError is the error envelope every handler returns.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// CreateSessionRequest starts one docking session.
type CreateSessionRequest struct {
	Query      string `json:"query"`
	ProteinPDB string `json:"protein_pdb"`
	LigandSDF  string `json:"ligand_sdf"`
	MaxSteps   int    `json:"max_steps,omitempty"`
}

// SessionAcceptedResponse acknowledges a queued session.
type SessionAcceptedResponse struct {
	SessionID string `json:"session_id"`
}
