package metrics

// 错误来源标签
const (
	SourceServer     = "server"
	SourceConnection = "connection"
)

// Recorder 指标上报接口
type Recorder interface {
	// ConnAccepted 连接被接纳
	ConnAccepted()
	// ConnRejected 连接在服务器关闭后被拒绝
	ConnRejected()
	// ConnClosed 连接关闭完成
	ConnClosed()
	// BytesRead 读取字节数
	BytesRead(n int)
	// BytesWritten 写出字节数
	BytesWritten(n int)
	// Error 引擎错误
	Error(source string)
	// CloseRetry 不可关闭重试
	CloseRetry()
}

// Nop 丢弃所有指标
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) ConnAccepted()    {}
func (Nop) ConnRejected()    {}
func (Nop) ConnClosed()      {}
func (Nop) BytesRead(int)    {}
func (Nop) BytesWritten(int) {}
func (Nop) Error(string)     {}
func (Nop) CloseRetry()      {}
