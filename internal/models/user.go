// internal/models/user.go
package models

import (
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username     string   `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email        string   `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string   `json:"-" gorm:"size:255;not null"`
	FullName     string   `json:"full_name" gorm:"size:255"`
	Address      string   `json:"address" gorm:"size:500"`
	UserType     UserType `json:"user_type" gorm:"type:varchar(20);default:'bidder'"`

	// Rating totals maintained by settlement rating submission. Points counts
	// every rating received, PositivePoints only the positive ones; the
	// eligibility gate consumes the ratio.
	Points         int `json:"points" gorm:"default:0"`
	PositivePoints int `json:"positive_points" gorm:"default:0"`

	// Relationships
	Auctions []Auction `json:"auctions,omitempty" gorm:"foreignKey:SellerID"`
	Bids     []Bid     `json:"bids,omitempty" gorm:"foreignKey:BidderID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// PositiveRatio returns positive_points/points, and whether the user has any
// rating history at all.
func (u *User) PositiveRatio() (float64, bool) {
	if u.Points == 0 {
		return 0, false
	}
	return float64(u.PositivePoints) / float64(u.Points), true
}
