package tools

import (
	"github.com/m4xw311/scribe/errors"
	"github.com/mitchellh/mapstructure"
)

// decodeArgs decodes a free-form argument map into a typed struct. Values of
// the wrong type are argument errors; unknown keys are ignored.
func decodeArgs(args map[string]any, out any) error {
	cfg := &mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  out,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	if err := decoder.Decode(args); err != nil {
		return errors.Wrapk(err, errors.KindArgument, "invalid arguments")
	}
	return nil
}

// checkRequired reports the first required parameter missing from args.
func checkRequired(params Parameters, args map[string]any) error {
	for _, name := range params.Required {
		if _, ok := args[name]; !ok {
			return errors.Argument("missing required argument '%s'", name)
		}
	}
	return nil
}
