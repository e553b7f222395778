package account

// Account is a registered user of the network. The password is stored
// verbatim and compared exactly during login; that is the contract the
// service has always had, not an endorsement of plaintext credentials.
type Account struct {
	ID       int64  `json:"accountId"`
	Username string `json:"username"`
	Password string `json:"password"`
}
