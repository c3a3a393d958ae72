package types

// ServerReport 服务器诊断快照
type ServerReport struct {
	// State 服务器状态
	State string `json:"state"`

	// Address 绑定地址，未监听时为空
	Address string `json:"address,omitempty"`

	// ConnectionsCount 已注册连接数
	ConnectionsCount int `json:"connections_count"`

	// Connections 已注册连接
	Connections []ConnReport `json:"connections"`
}

// ConnReport 连接诊断快照
type ConnReport struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Local     string `json:"local,omitempty"`
	Remote    string `json:"remote,omitempty"`
	KeepAlive bool   `json:"keep_alive"`
}
