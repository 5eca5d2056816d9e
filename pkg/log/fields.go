package log

import (
	"net"

	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameSessionID = "sessionID"
	FieldNameRoom      = "room"
	FieldNameRemote    = "remote"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldSessionID 返回一个包含会话 ID 的 zap 字段。
func FieldSessionID(id uint64) zap.Field {
	return zap.Uint64(FieldNameSessionID, id)
}

// FieldRoom 返回一个包含房间号的 zap 字段。
func FieldRoom(room int64) zap.Field {
	return zap.Int64(FieldNameRoom, room)
}

// FieldRemote 返回一个包含对端地址的 zap 字段，addr 为 nil 时输出空串。
func FieldRemote(addr net.Addr) zap.Field {
	if addr == nil {
		return zap.String(FieldNameRemote, "")
	}
	return zap.String(FieldNameRemote, addr.String())
}
