package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type Role string

const (
	RoleUser           Role = "USER"
	RoleEmployee       Role = "EMPLOYEE"
	RoleSeniorEmployee Role = "SENIOR_EMPLOYEE"
	RoleAdmin          Role = "ADMIN"
)

var Roles = []Role{RoleUser, RoleEmployee, RoleSeniorEmployee, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEmployee, RoleSeniorEmployee, RoleAdmin:
		return true
	}
	return false
}

// ID 后端使用数字 ID，但也有接口返回字符串 ID，这里统一成字符串
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

type User struct {
	ID       ID     `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}
