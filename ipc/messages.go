package ipc

// Event names must stay in sync with the game server's socket handlers.
const (
	TypeDeployStrategy   = "deploy_strategy"   // agent → server
	TypeStrategyDeployed = "strategy_deployed" // server → agent
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DeployStrategyMessage carries a validated strategy body.
type DeployStrategyMessage struct {
	Code string `json:"code"`
}

// StrategyDeployedMessage is the server's acknowledgment of a deployment.
type StrategyDeployedMessage struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (m StrategyDeployedMessage) OK() bool { return m.Status == StatusSuccess }
