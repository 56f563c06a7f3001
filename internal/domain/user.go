package domain

type User struct {
	Username    string   `json:"username"`
	Enabled     bool     `json:"enabled"`
	Permissions []string `json:"permissions"`
}

type UserCreate struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Permissions []string `json:"permissions"`
}

type UserPatch struct {
	Usernames []string `json:"usernames"`
	Enabled   bool     `json:"enabled"`
}

type UserDelete struct {
	Usernames []string `json:"usernames"`
}
