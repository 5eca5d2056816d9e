package chat

import (
	"strconv"
	"strings"

	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

const (
	// RoomMarker 是房间指令的前缀。
	RoomMarker = "/"
	// ExitToken 是客户端主动断开的指令，必须整行匹配。
	ExitToken = "exit"
)

// DirectiveKind 区分客户端发来的一行内容。
type DirectiveKind int

const (
	DirectiveMessage DirectiveKind = iota
	DirectiveSwitchRoom
	DirectiveExit
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveSwitchRoom:
		return "switch_room"
	case DirectiveExit:
		return "exit"
	default:
		return "message"
	}
}

// Directive 是解析后的一行客户端输入。
type Directive struct {
	Kind DirectiveKind
	// Room 仅对 DirectiveSwitchRoom 有效。
	Room int64
	// Text 为原始行（不含换行）。
	Text string
}

// ParseDirective 解析会话进入 Active 之后收到的一行。
// 以 "/" 开头但房间号无法解析时返回 merr.ErrProtocolMalformedRoom。
func ParseDirective(line string) (Directive, error) {
	switch {
	case line == ExitToken:
		return Directive{Kind: DirectiveExit, Text: line}, nil
	case strings.HasPrefix(line, RoomMarker):
		room, err := ParseRoom(line)
		if err != nil {
			return Directive{}, err
		}
		return Directive{Kind: DirectiveSwitchRoom, Room: room, Text: line}, nil
	default:
		return Directive{Kind: DirectiveMessage, Text: line}, nil
	}
}

// ParseRoom 解析 "/<integer>" 形式的房间指令。
// 整数部分必须完整合法，不接受空白或多余字符。
func ParseRoom(line string) (int64, error) {
	rest, ok := strings.CutPrefix(line, RoomMarker)
	if !ok {
		return 0, merr.WrapErrProtocolMalformedRoom(line, "missing room marker")
	}
	room, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, merr.WrapErrProtocolMalformedRoom(line)
	}
	return room, nil
}

// FormatRoom 生成切换到 room 的指令行（不含换行）。
func FormatRoom(room int64) string {
	return RoomMarker + strconv.FormatInt(room, 10)
}
