package ws

type IHub interface {
	Run()
	RegisterClient(client *UserClient)
	UnregisterClient(client *UserClient)
	SendToClient(userId string, message []byte) bool
	Broadcast(message []byte)
	IsOnline(userId string) bool
	OnlineUsers() []string
	GetClientCount() int
	SetOnClientUnregister(callback func(client *UserClient) error)
	Close()
}
