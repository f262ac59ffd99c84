package coordinator

import "time"

// AdminOp identifies one MBean-shaped admin operation (spec.md §6, §9).
// Values start at 100, continuing the numeric-shard-id namespacing
// convention the teacher's own shard config used to tell a store shard
// from a lock manager shard ("100=lstore,200=lockmgr(lstore)"): here it
// separates the admin op range from messaging.Verb's 0-10 wire range on
// the same rpc/transport dispatch table.
type AdminOp uint16

const (
	AdminGetWriteTimeout AdminOp = 100 + iota
	AdminSetWriteTimeout
	AdminGetReadTimeout
	AdminSetReadTimeout
	AdminGetCounterWriteTimeout
	AdminSetCounterWriteTimeout
	AdminGetRangeTimeout
	AdminSetRangeTimeout
	AdminGetTruncateTimeout
	AdminSetTruncateTimeout
	AdminGetCASContentionTimeout
	AdminSetCASContentionTimeout
	AdminGetHintedHandoffEnabled
	AdminSetHintedHandoffEnabled
	AdminGetMaxHintsInProgress
	AdminSetMaxHintsInProgress
	AdminGetMaxHintWindow
	AdminSetMaxHintWindow
	AdminDescribeSchemaVersions
)

// AdminRequest is the single wire shape every AdminOp travels in.
// DescribeSchemaVersions, the one op with its own parameter, reuses
// DurationValue for the caller's deadline.
type AdminRequest struct {
	Op            AdminOp
	DurationValue time.Duration
	BoolValue     bool
	Uint64Value   uint64
}

// AdminResponse is the single wire shape every AdminOp answers with; only
// the field matching the request's Op is meaningful.
type AdminResponse struct {
	DurationValue  time.Duration
	BoolValue      bool
	Uint64Value    uint64
	SchemaVersions map[string][]string
}

// HandleAdmin multiplexes cmd/admin's nodetool-equivalent requests onto
// Context's MBean getter/setter surface, the admin-side analogue of
// HandleSchemaVersionProbe.
func (c *Context) HandleAdmin(req AdminRequest) AdminResponse {
	switch req.Op {
	case AdminGetWriteTimeout:
		return AdminResponse{DurationValue: c.GetWriteTimeout()}
	case AdminSetWriteTimeout:
		c.SetWriteTimeout(req.DurationValue)
		return AdminResponse{}
	case AdminGetReadTimeout:
		return AdminResponse{DurationValue: c.GetReadTimeout()}
	case AdminSetReadTimeout:
		c.SetReadTimeout(req.DurationValue)
		return AdminResponse{}
	case AdminGetCounterWriteTimeout:
		return AdminResponse{DurationValue: c.GetCounterWriteTimeout()}
	case AdminSetCounterWriteTimeout:
		c.SetCounterWriteTimeout(req.DurationValue)
		return AdminResponse{}
	case AdminGetRangeTimeout:
		return AdminResponse{DurationValue: c.GetRangeTimeout()}
	case AdminSetRangeTimeout:
		c.SetRangeTimeout(req.DurationValue)
		return AdminResponse{}
	case AdminGetTruncateTimeout:
		return AdminResponse{DurationValue: c.GetTruncateTimeout()}
	case AdminSetTruncateTimeout:
		c.SetTruncateTimeout(req.DurationValue)
		return AdminResponse{}
	case AdminGetCASContentionTimeout:
		return AdminResponse{DurationValue: c.GetCASContentionTimeout()}
	case AdminSetCASContentionTimeout:
		c.SetCASContentionTimeout(req.DurationValue)
		return AdminResponse{}
	case AdminGetHintedHandoffEnabled:
		return AdminResponse{BoolValue: c.GetHintedHandoffEnabled()}
	case AdminSetHintedHandoffEnabled:
		c.SetHintedHandoffEnabled(req.BoolValue)
		return AdminResponse{}
	case AdminGetMaxHintsInProgress:
		return AdminResponse{Uint64Value: c.GetMaxHintsInProgress()}
	case AdminSetMaxHintsInProgress:
		c.SetMaxHintsInProgress(req.Uint64Value)
		return AdminResponse{}
	case AdminGetMaxHintWindow:
		return AdminResponse{DurationValue: c.GetMaxHintWindow()}
	case AdminSetMaxHintWindow:
		c.SetMaxHintWindow(req.DurationValue)
		return AdminResponse{}
	case AdminDescribeSchemaVersions:
		byVersion := c.DescribeSchemaVersions(req.DurationValue)
		out := make(map[string][]string, len(byVersion))
		for version, endpoints := range byVersion {
			strs := make([]string, len(endpoints))
			for i, e := range endpoints {
				strs[i] = string(e)
			}
			out[version] = strs
		}
		return AdminResponse{SchemaVersions: out}
	default:
		return AdminResponse{}
	}
}
