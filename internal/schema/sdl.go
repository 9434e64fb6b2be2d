package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

var builtinScalars = map[string]bool{
	"String":  true,
	"Int":     true,
	"Float":   true,
	"Boolean": true,
	"ID":      true,
}

// PrintSDL renders schema as SDL. The output is parsed and validated with
// gqlparser and re-printed by its formatter, so it is canonical and known to
// load in other GraphQL tooling.
func PrintSDL(schema graphql.Schema) (string, error) {
	raw := printTypes(schema)
	parsed, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: raw})
	if err != nil {
		return "", fmt.Errorf("generated SDL is invalid: %w", err)
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchema(parsed)
	return buf.String(), nil
}

func printTypes(schema graphql.Schema) string {
	typeMap := schema.TypeMap()
	names := make([]string, 0, len(typeMap))
	for name := range typeMap {
		if strings.HasPrefix(name, "__") || builtinScalars[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		switch t := typeMap[name].(type) {
		case *graphql.Object:
			writeDescription(&b, "", t.Description())
			b.WriteString("type " + t.Name())
			if ifaces := t.Interfaces(); len(ifaces) > 0 {
				ifaceNames := make([]string, len(ifaces))
				for i, iface := range ifaces {
					ifaceNames[i] = iface.Name()
				}
				b.WriteString(" implements " + strings.Join(ifaceNames, " & "))
			}
			writeFields(&b, t.Fields())
		case *graphql.Interface:
			writeDescription(&b, "", t.Description())
			b.WriteString("interface " + t.Name())
			writeFields(&b, t.Fields())
		case *graphql.Union:
			writeDescription(&b, "", t.Description())
			members := make([]string, len(t.Types()))
			for i, member := range t.Types() {
				members[i] = member.Name()
			}
			b.WriteString("union " + t.Name() + " = " + strings.Join(members, " | ") + "\n\n")
		case *graphql.Enum:
			writeDescription(&b, "", t.Description())
			b.WriteString("enum " + t.Name() + " {\n")
			values := append([]*graphql.EnumValueDefinition(nil), t.Values()...)
			sort.Slice(values, func(i, j int) bool { return values[i].Name < values[j].Name })
			for _, v := range values {
				writeDescription(&b, "  ", v.Description)
				b.WriteString("  " + v.Name + deprecation(v.DeprecationReason) + "\n")
			}
			b.WriteString("}\n\n")
		case *graphql.InputObject:
			writeDescription(&b, "", t.Description())
			b.WriteString("input " + t.Name() + " {\n")
			fields := t.Fields()
			fieldNames := make([]string, 0, len(fields))
			for fieldName := range fields {
				fieldNames = append(fieldNames, fieldName)
			}
			sort.Strings(fieldNames)
			for _, fieldName := range fieldNames {
				f := fields[fieldName]
				writeDescription(&b, "  ", f.PrivateDescription)
				b.WriteString("  " + fieldName + ": " + f.Type.String() + defaultValue(f.DefaultValue) + "\n")
			}
			b.WriteString("}\n\n")
		case *graphql.Scalar:
			writeDescription(&b, "", t.Description())
			b.WriteString("scalar " + t.Name() + "\n\n")
		}
	}
	return b.String()
}

func writeFields(b *strings.Builder, fields graphql.FieldDefinitionMap) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString(" {\n")
	for _, name := range names {
		f := fields[name]
		writeDescription(b, "  ", f.Description)
		b.WriteString("  " + name)
		if len(f.Args) > 0 {
			args := make([]*graphql.Argument, len(f.Args))
			copy(args, f.Args)
			sort.Slice(args, func(i, j int) bool { return args[i].Name() < args[j].Name() })
			parts := make([]string, len(args))
			for i, arg := range args {
				parts[i] = arg.Name() + ": " + arg.Type.String() + defaultValue(arg.DefaultValue)
			}
			b.WriteString("(" + strings.Join(parts, ", ") + ")")
		}
		b.WriteString(": " + f.Type.String() + deprecation(f.DeprecationReason) + "\n")
	}
	b.WriteString("}\n\n")
}

func writeDescription(b *strings.Builder, indent, description string) {
	if description == "" {
		return
	}
	escaped := strings.ReplaceAll(description, `"""`, `\"""`)
	b.WriteString(indent + `"""` + escaped + `"""` + "\n")
}

func deprecation(reason string) string {
	if reason == "" {
		return ""
	}
	quoted, _ := json.Marshal(reason)
	return " @deprecated(reason: " + string(quoted) + ")"
}

func defaultValue(value interface{}) string {
	if value == nil {
		return ""
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return " = " + string(encoded)
}
