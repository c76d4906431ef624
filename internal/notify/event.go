package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/canteen/internal/datamodels/user"
)

// 事件名
const (
	OrderCreated    = "order.created"
	OrderUpdated    = "order.updated"
	NoticeBanner    = "notice.banner"
	SupplyRequested = "supply.requested"
)

// wireNames 事件名到 websocket 事件的映射
var wireNames = map[string]string{
	OrderCreated:    "order:new",
	OrderUpdated:    "order:update",
	NoticeBanner:    "notify:banner",
	SupplyRequested: "supply:new",
}

// WireName 客户端看到的事件名
func WireName(name string) string {
	if w, ok := wireNames[name]; ok {
		return w
	}
	return name
}

// Audience 按角色划分的接收方；Role 为 CUSTOMER 时 UserID 指定具体用户
type Audience struct {
	Role   string `json:"role"`
	UserID int64  `json:"user_id,omitempty"`
}

const (
	roleCustomer = "CUSTOMER"
	roleAll      = "ALL"
)

var (
	Student = Audience{Role: string(user.RoleStudent)}
	Cook    = Audience{Role: string(user.RoleCook)}
	Admin   = Audience{Role: string(user.RoleAdmin)}
	All     = Audience{Role: roleAll}
)

// Customer 某个下单用户
func Customer(userID int64) Audience {
	return Audience{Role: roleCustomer, UserID: userID}
}

// Room websocket 房间名
func (a Audience) Room() string {
	switch a.Role {
	case roleCustomer:
		return fmt.Sprintf("customer:%d", a.UserID)
	case roleAll:
		return "all"
	case string(user.RoleStudent):
		return "student"
	case string(user.RoleCook):
		return "cook"
	case string(user.RoleAdmin):
		return "admin"
	}
	return ""
}

// ParseAudience 解析管理员公告的目标：ALL / STUDENT / COOK / ADMIN / CUSTOMER:<用户id>
func ParseAudience(s string) (Audience, bool) {
	if rest, ok := strings.CutPrefix(s, roleCustomer+":"); ok {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return Audience{}, false
		}
		return Customer(id), true
	}
	switch s {
	case "", roleAll:
		return All, true
	case string(user.RoleCook):
		return Cook, true
	case string(user.RoleAdmin):
		return Admin, true
	case string(user.RoleStudent):
		return Student, true
	}
	return Audience{}, false
}

// RoomsFor 某个已登录连接应加入的房间
func RoomsFor(role user.Role, userID int64) []string {
	rooms := []string{All.Room(), Customer(userID).Room()}
	switch role {
	case user.RoleStudent:
		rooms = append(rooms, Student.Room())
	case user.RoleCook:
		rooms = append(rooms, Cook.Room())
	case user.RoleAdmin:
		rooms = append(rooms, Admin.Room())
	}
	return rooms
}

// Event 状态变更后的通知，只携带实体 id 与新状态/内容
type Event struct {
	Name      string     `json:"name"`
	Audiences []Audience `json:"audiences"`
	OrderID   int64      `json:"order_id,omitempty"`
	SupplyID  int64      `json:"supply_id,omitempty"`
	UserID    int64      `json:"user_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	Message   string     `json:"message,omitempty"`
	At        time.Time  `json:"at"`
}
