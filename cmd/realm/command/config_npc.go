package command

import (
	"fmt"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-realm/internal/geom"
	"github.com/pixil98/go-realm/internal/npc"
)

// NPCConfig lists the NPC definitions loaded at startup. With no path the
// world starts empty and NPCs only arrive through the admin subjects.
type NPCConfig struct {
	Definitions *AssetConfig[*npc.Def] `json:"definitions,omitempty"`
}

func (c *NPCConfig) validate() error {
	el := errors.NewErrorList()

	if c.Definitions != nil {
		el.Add(c.Definitions.Validate("npc definitions"))
	}

	return el.Err()
}

// loadDefs reads every definition and checks that it spawns inside bounds.
func (c *NPCConfig) loadDefs(bounds geom.Bounds) (map[string]*npc.Def, error) {
	if c.Definitions == nil {
		return map[string]*npc.Def{}, nil
	}

	store, err := c.Definitions.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("loading npc definitions: %w", err)
	}

	el := errors.NewErrorList()
	defs := store.GetAll()
	for _, id := range store.Ids() {
		if !bounds.ContainsXZ(defs[id].Spawn) {
			el.Add(fmt.Errorf("npc %s spawns outside the world bounds", id))
		}
	}
	if err := el.Err(); err != nil {
		return nil, err
	}

	return defs, nil
}
