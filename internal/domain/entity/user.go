package entity

import (
	"time"
)

const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
)

// User is the read-only profile view the chat subsystem needs; profiles are owned by the profile service.
type User struct {
	ID          string    `json:"id" firestore:"id" bson:"_id"`
	Email       string    `json:"email,omitempty" firestore:"email" bson:"email"`
	DisplayName string    `json:"displayName" firestore:"displayName" bson:"displayName"`
	PhotoURL    string    `json:"photoUrl,omitempty" firestore:"photoURL,omitempty" bson:"photoUrl,omitempty"`
	Role        string    `json:"role" firestore:"role" bson:"role"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// ParticipantDetail is the public projection of a participant returned alongside a chat.
type ParticipantDetail struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	Role        string `json:"role,omitempty"`
	IsOnline    bool   `json:"isOnline"`
}
