package entity

// MasterAgent is the identity of the shared listen key.
const MasterAgent = "admin"

// AgentAuth is the identity attached to an authenticated agent request or connection.
type AgentAuth struct {
	Username string `json:"username"`
	Token    string `json:"-"`
}

func (u *AgentAuth) IsMaster() bool {
	return u.Username == MasterAgent
}
