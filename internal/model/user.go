// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// UserType はユーザー種別を表す。種別によってプロフィールの形が決まる。
type UserType string

const (
	// UserTypeCompany は企業ユーザー。
	UserTypeCompany UserType = "company"
	// UserTypeTalent はタレント（求職者）ユーザー。
	UserTypeTalent UserType = "talent"
)

// ParseUserType は文字列をUserTypeに変換する。未知の値はエラーを返す。
func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case UserTypeCompany:
		return UserTypeCompany, nil
	case UserTypeTalent:
		return UserTypeTalent, nil
	default:
		return "", fmt.Errorf("unknown user type: %q", s)
	}
}

// String はfmt.Stringerを実装する。
func (t UserType) String() string {
	return string(t)
}

// CompanyProfile は企業ユーザーのプロフィール。
type CompanyProfile struct {
	CompanyName string `json:"company_name"`
	Industry    string `json:"industry,omitempty"`
	Size        string `json:"size,omitempty"`
	Website     string `json:"website,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
}

// TalentProfile はタレントユーザーのプロフィール。
type TalentProfile struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Headline  string   `json:"headline,omitempty"`
	Location  string   `json:"location,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	AvatarURL string   `json:"avatar_url,omitempty"`
}

// User は認証済みのユーザーを表す。
// Company と Talent は UserType に応じてどちらか一方のみが設定される。
type User struct {
	ID       string
	Email    string
	UserType UserType
	Company  *CompanyProfile
	Talent   *TalentProfile
}

// Validate はユーザー種別とプロフィールの整合性を検証する。
// プロフィールが両方設定されている場合や、種別と異なるプロフィールを持つ場合はエラーを返す。
func (u *User) Validate() error {
	if _, err := ParseUserType(string(u.UserType)); err != nil {
		return err
	}
	if u.Company != nil && u.Talent != nil {
		return fmt.Errorf("user %s has both company and talent profiles", u.ID)
	}
	if u.UserType == UserTypeCompany && u.Talent != nil {
		return fmt.Errorf("company user %s has a talent profile", u.ID)
	}
	if u.UserType == UserTypeTalent && u.Company != nil {
		return fmt.Errorf("talent user %s has a company profile", u.ID)
	}
	return nil
}

// userJSON はUserのワイヤーフォーマット。
// バックエンドAPIと永続化スロットの両方で同じ形を使う。
type userJSON struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	UserType string          `json:"user_type"`
	Profile  json.RawMessage `json:"profile,omitempty"`
}

// MarshalJSON は種別に対応するプロフィールのみを "profile" に書き出す。
func (u User) MarshalJSON() ([]byte, error) {
	w := userJSON{ID: u.ID, Email: u.Email, UserType: string(u.UserType)}

	var profile any
	switch u.UserType {
	case UserTypeCompany:
		if u.Company != nil {
			profile = u.Company
		}
	case UserTypeTalent:
		if u.Talent != nil {
			profile = u.Talent
		}
	}
	if profile != nil {
		b, err := json.Marshal(profile)
		if err != nil {
			return nil, err
		}
		w.Profile = b
	}
	return json.Marshal(w)
}

// UnmarshalJSON は "user_type" を見て "profile" を対応する型にデコードする。
func (u *User) UnmarshalJSON(data []byte) error {
	var w userJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	userType, err := ParseUserType(w.UserType)
	if err != nil {
		return err
	}

	*u = User{ID: w.ID, Email: w.Email, UserType: userType}

	if len(w.Profile) == 0 || string(w.Profile) == "null" {
		return nil
	}

	switch userType {
	case UserTypeCompany:
		var p CompanyProfile
		if err := json.Unmarshal(w.Profile, &p); err != nil {
			return fmt.Errorf("invalid company profile: %w", err)
		}
		u.Company = &p
	case UserTypeTalent:
		var p TalentProfile
		if err := json.Unmarshal(w.Profile, &p); err != nil {
			return fmt.Errorf("invalid talent profile: %w", err)
		}
		u.Talent = &p
	}
	return nil
}

// Session はゲートウェイが保持するログインセッションを表す。
// ID はCookieに載せるゲートウェイ側のキー、SessionID はバックエンドが発行したセッションID。
type Session struct {
	ID              string    `json:"-"`
	IsAuthenticated bool      `json:"is_authenticated"`
	Token           string    `json:"token"`
	SessionID       string    `json:"session_id"`
	User            User      `json:"user"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// UserType はセッションのユーザー種別を返す。
func (s *Session) UserType() UserType {
	if s == nil {
		return ""
	}
	return s.User.UserType
}
