// Command schemagen writes a JSON schema for every packet payload.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/pixil98/go-realm/internal/protocol"
)

// payloads maps output file stems to the struct each schema describes.
// NPC_SPAWN and NPC_UPDATE share one payload.
var payloads = map[string]any{
	"handshake_challenge": &protocol.HandshakeChallenge{},
	"player_join":         &protocol.PlayerJoin{},
	"player_id_assigned":  &protocol.PlayerIDAssigned{},
	"player_move":         &protocol.PlayerMove{},
	"player_correction":   &protocol.PlayerCorrection{},
	"world_update":        &protocol.WorldUpdate{},
	"npc_state":           &protocol.NPCState{},
	"npc_despawn":         &protocol.NPCDespawn{},
	"chat":                &protocol.Chat{},
	"pong":                &protocol.Pong{},
}

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "", "directory to write schemas into")
	flag.Parse()

	if outDir == "" {
		fmt.Fprintln(os.Stderr, "-out is required")
		os.Exit(1)
	}

	if err := generate(outDir); err != nil {
		slog.Error("generating schemas", "error", err)
		os.Exit(1)
	}
}

func generate(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating schema directory: %w", err)
	}

	names := make([]string, 0, len(payloads))
	for name := range payloads {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(outDir, name+".schema.json")
		if err := writeSchema(path, buildSchema(payloads[name])); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		slog.Info("wrote schema", "path", path)
	}
	return nil
}

func buildSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(v)

	// The join timestamp is kept raw and accepts a number or a numeric string.
	if join, ok := schema.Definitions["PlayerJoin"]; ok && join.Properties != nil {
		join.Properties.Set("ts", &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{{Type: "integer"}, {Type: "string"}},
		})
	}
	return schema
}

func writeSchema(path string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
