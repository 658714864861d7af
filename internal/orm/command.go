package orm

import (
	"encoding/json"
	"fmt"
)

// CommandOp selects the effect of an x2many write command.
type CommandOp string

const (
	CmdCreate  CommandOp = "create"
	CmdLink    CommandOp = "link"
	CmdUnlink  CommandOp = "unlink"
	CmdReplace CommandOp = "replace"
)

// Command edits an x2many field in place of a plain id list.
type Command struct {
	Op     CommandOp `json:"op"`
	ID     ID        `json:"id,omitempty"`
	IDs    []ID      `json:"ids,omitempty"`
	Values Values    `json:"values,omitempty"`
}

// Link adds an existing record.
func Link(id ID) Command { return Command{Op: CmdLink, ID: id} }

// UnlinkCmd removes a record from the relation without deleting it.
func UnlinkCmd(id ID) Command { return Command{Op: CmdUnlink, ID: id} }

// Create makes a new related record from values and links it.
func Create(values Values) Command { return Command{Op: CmdCreate, Values: values} }

// Replace sets the relation to exactly ids.
func Replace(ids ...ID) Command { return Command{Op: CmdReplace, IDs: ids} }

// ApplyCommands folds cmds over current, calling create for CmdCreate.
func ApplyCommands(current []ID, cmds []Command, create func(Values) (ID, error)) ([]ID, error) {
	out := append([]ID(nil), current...)
	for _, c := range cmds {
		switch c.Op {
		case CmdLink:
			if !containsID(out, c.ID) {
				out = append(out, c.ID)
			}
		case CmdUnlink:
			out = removeID(out, c.ID)
		case CmdReplace:
			out = append([]ID(nil), c.IDs...)
		case CmdCreate:
			id, err := create(c.Values)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		default:
			return nil, fmt.Errorf("%w: unknown x2many command %q", ErrInvalidValue, c.Op)
		}
	}
	return out, nil
}

// AsCommands interprets an x2many value as a command list. Plain id lists
// are treated as Replace; decoded JSON objects are parsed as commands.
func AsCommands(val any) ([]Command, bool) {
	switch x := val.(type) {
	case nil:
		return []Command{Replace()}, true
	case Command:
		return []Command{x}, true
	case []Command:
		return x, true
	}
	if ids, ok := AsIDs(val); ok {
		return []Command{Replace(ids...)}, true
	}
	list, ok := val.([]any)
	if !ok {
		return nil, false
	}
	cmds := make([]Command, 0, len(list))
	for _, item := range list {
		var c Command
		switch x := item.(type) {
		case Command:
			c = x
		case map[string]any, Values:
			raw, err := json.Marshal(x)
			if err != nil {
				return nil, false
			}
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, false
			}
			c.Values = NormalizeValues(c.Values)
		default:
			return nil, false
		}
		cmds = append(cmds, c)
	}
	return cmds, true
}

func containsID(ids []ID, id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []ID, id ID) []ID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
