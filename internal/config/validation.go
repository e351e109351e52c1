package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

//go:embed config.cue
var schemaSource string

// cue values are not safe for concurrent use; schemaMu guards the compiled definition.
var (
	schemaMu  sync.Mutex
	schemaCtx *cue.Context
	schemaDef cue.Value
)

func configDefinition() (cue.Value, error) {
	if schemaCtx != nil {
		return schemaDef, nil
	}
	ctx := cuecontext.New()
	compiled := ctx.CompileString(schemaSource, cue.Filename("config.cue"))
	if err := compiled.Err(); err != nil {
		return cue.Value{}, errors.Wrap(err, "compile config schema")
	}
	def := compiled.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return cue.Value{}, errors.New("config schema has no #Config definition")
	}
	schemaCtx, schemaDef = ctx, def
	return def, nil
}

// validate checks a YAML document against #Config and reports every violation with its path.
// An empty document is valid.
func validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "parse config")
	}
	if doc == nil {
		return nil
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()
	def, err := configDefinition()
	if err != nil {
		return err
	}
	value := schemaCtx.Encode(doc)
	if err := value.Err(); err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return errors.Newf("invalid config: %s", violations(err))
	}
	return nil
}

func violations(err error) string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := strings.Join(e.Path(), "."); path != "" {
			msg = path + ": " + msg
		}
		out = append(out, msg)
	}
	if len(out) == 0 {
		return err.Error()
	}
	return strings.Join(out, "; ")
}
