package notify

// Nop discards all notifications and resolves every user to a fixed name.
// Used in tests and when a display channel is not configured.
type Nop struct{}

var _ Notifier = Nop{}
var _ IdentityResolver = Nop{}

func (Nop) Send(channelID, content string) (string, error)       { return "", nil }
func (Nop) Edit(channelID, messageID, content string) error      { return nil }
func (Nop) CreateThread(channelID, name string) (string, error)  { return "", nil }
func (Nop) DisplayName(userID string) (string, error)            { return "player", nil }
func (Nop) SetNickname(userID, nickname string) error            { return nil }
func (Nop) SetOwnerRole(userID string, owned bool) error         { return nil }
