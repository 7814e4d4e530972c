package model

// RegistrationResult is computed once per registration call. Persistence is the
// side effect on the remote WireGuard configuration, never this value. AssignedIp is nil
// for an existing peer that has no AllowedIPs.
type RegistrationResult struct {
	AlreadyExists   bool    `json:"alreadyExists"`
	AssignedIp      *string `json:"assignedIp"`
	PresharedKey    *string `json:"presharedKey"`
	PublicKey       string  `json:"publicKey"`
	ServerPublicKey string  `json:"serverPublicKey"`
}
