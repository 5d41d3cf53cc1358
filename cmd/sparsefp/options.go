package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// OptionType defines the type of value an option expects
type OptionType int

const (
	OptionTypeBool   OptionType = iota
	OptionTypeString            // Takes a value: --opt=value or --opt value
	OptionTypeInt               // Takes an integer value
	OptionTypeCount             // Counts repetitions: -vvv, --verbose --verbose
	OptionTypeList              // Takes a value and may be repeated
)

// OptionDef defines a command-line option
type OptionDef struct {
	Long        string     // Long option name (without --)
	Short       string     // Short option name (without -)
	Type        OptionType // Type of value expected
	Value       string     // Value placeholder for help output
	Description string     // Help description
	Default     string     // Default value
}

// ParsedOptions holds the parsed command-line options
type ParsedOptions struct {
	order         []string // Long names in definition order, for help output
	defs          map[string]*OptionDef
	shortMap      map[string]string // Maps short options to long options
	values        map[string]string
	lists         map[string][]string
	args          []string
	explicitlySet map[string]bool
}

// NewParsedOptions creates a new options parser
func NewParsedOptions() *ParsedOptions {
	return &ParsedOptions{
		defs:          make(map[string]*OptionDef),
		shortMap:      make(map[string]string),
		values:        make(map[string]string),
		lists:         make(map[string][]string),
		explicitlySet: make(map[string]bool),
	}
}

// DefineOption defines a command-line option
func (p *ParsedOptions) DefineOption(long, short string, optType OptionType, defaultValue, value, description string) {
	p.defs[long] = &OptionDef{
		Long:        long,
		Short:       short,
		Type:        optType,
		Value:       value,
		Description: description,
		Default:     defaultValue,
	}
	p.order = append(p.order, long)
	if short != "" {
		p.shortMap[short] = long
	}
	if defaultValue != "" {
		p.values[long] = defaultValue
	}
}

// Parse parses command-line arguments. Everything after "--" is an argument.
func (p *ParsedOptions) Parse(args []string) error {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			p.args = append(p.args, args[i+1:]...)
			return nil
		case strings.HasPrefix(arg, "--"):
			if err := p.parseLongOption(arg, args, &i); err != nil {
				return err
			}
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			if err := p.parseShortOptions(arg, args, &i); err != nil {
				return err
			}
		default:
			p.args = append(p.args, arg)
		}
	}
	return nil
}

// parseLongOption parses --option, --option=value or --option value
func (p *ParsedOptions) parseLongOption(arg string, args []string, i *int) error {
	optName, optValue, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")

	def, exists := p.defs[optName]
	if !exists {
		return fmt.Errorf("unknown option: --%s", optName)
	}

	switch def.Type {
	case OptionTypeBool:
		if !hasValue {
			return p.set(def, "true")
		}
		switch optValue {
		case "true", "1":
			return p.set(def, "true")
		case "false", "0":
			return p.set(def, "false")
		default:
			return fmt.Errorf("invalid boolean value for --%s: %s", optName, optValue)
		}
	case OptionTypeCount:
		if hasValue {
			return p.set(def, optValue)
		}
		return p.increment(def)
	default:
		if !hasValue {
			if *i+1 >= len(args) {
				return fmt.Errorf("option --%s requires a value", optName)
			}
			*i++
			optValue = args[*i]
		}
		return p.set(def, optValue)
	}
}

// parseShortOptions parses -o, -abc and -n VALUE; a value-taking option must
// come last in a cluster
func (p *ParsedOptions) parseShortOptions(arg string, args []string, i *int) error {
	shortOpts := strings.TrimPrefix(arg, "-")

	for pos, r := range shortOpts {
		short := string(r)
		longOpt, exists := p.shortMap[short]
		if !exists {
			return fmt.Errorf("unknown option: -%s", short)
		}
		def := p.defs[longOpt]

		switch def.Type {
		case OptionTypeBool:
			if err := p.set(def, "true"); err != nil {
				return err
			}
		case OptionTypeCount:
			if err := p.increment(def); err != nil {
				return err
			}
		default:
			if pos != len(shortOpts)-1 {
				return fmt.Errorf("option -%s requires a value and must end the option group", short)
			}
			if *i+1 >= len(args) {
				return fmt.Errorf("option -%s requires a value", short)
			}
			*i++
			if err := p.set(def, args[*i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// set stores a value, validating integers and appending to lists
func (p *ParsedOptions) set(def *OptionDef, value string) error {
	switch def.Type {
	case OptionTypeInt, OptionTypeCount:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("invalid integer value for --%s: %s", def.Long, value)
		}
	case OptionTypeList:
		p.lists[def.Long] = append(p.lists[def.Long], value)
	}
	p.values[def.Long] = value
	p.explicitlySet[def.Long] = true
	return nil
}

func (p *ParsedOptions) increment(def *OptionDef) error {
	return p.set(def, strconv.Itoa(p.GetInt(def.Long)+1))
}

// GetString returns a string option value
func (p *ParsedOptions) GetString(option string) string {
	return p.values[option]
}

// GetInt returns an integer option value
func (p *ParsedOptions) GetInt(option string) int {
	if val, exists := p.values[option]; exists {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return 0
}

// GetBool returns a boolean option value
func (p *ParsedOptions) GetBool(option string) bool {
	return p.values[option] == "true"
}

// GetList returns every value given for a repeatable option
func (p *ParsedOptions) GetList(option string) []string {
	return p.lists[option]
}

// IsSet returns true if an option was explicitly set
func (p *ParsedOptions) IsSet(option string) bool {
	return p.explicitlySet[option]
}

// GetArgs returns non-option arguments
func (p *ParsedOptions) GetArgs() []string {
	return p.args
}

// WriteOptionHelp writes one entry per option in definition order
func (p *ParsedOptions) WriteOptionHelp(w io.Writer) {
	for _, long := range p.order {
		def := p.defs[long]

		var shortOpt string
		if def.Short != "" {
			shortOpt = fmt.Sprintf("-%s, ", def.Short)
		}
		var valueDesc string
		if def.Value != "" {
			valueDesc = " " + def.Value
		}

		fmt.Fprintf(w, "  %s--%s%s\n", shortOpt, def.Long, valueDesc)
		for _, line := range strings.Split(def.Description, "\n") {
			fmt.Fprintf(w, "        %s\n", line)
		}
	}
}
