package domain

// Member represents a user's participation in a room.
// No transport or lifecycle logic here.
type Member struct {
	User *User
}

func NewMember(user *User) *Member {
	return &Member{User: user}
}
