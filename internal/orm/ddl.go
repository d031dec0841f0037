package orm

import (
	"fmt"
	"strings"
)

// GenerateDDL renders the CREATE TABLE statement for a schema. Output depends
// only on the schema, so identical declarations produce identical text.
func GenerateDDL(s *Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- generating SQL for %s:\n", s.table)
	fmt.Fprintf(&b, "CREATE TABLE `%s` (\n", s.table)

	lines := make([]string, 0, len(s.columns)+2)
	var foreign []string
	for _, f := range s.columns {
		line := fmt.Sprintf("\t`%s` %s", f.name, f.ddl)
		if !f.nullable {
			line += " NOT NULL"
		}
		lines = append(lines, line)
		if f.foreignKey {
			foreign = append(foreign, fmt.Sprintf("\tFOREIGN KEY (`%s`) REFERENCES `%s` (`%s`)", f.name, f.foreignTable, f.foreignColumn))
		}
	}
	lines = append(lines, fmt.Sprintf("\tPRIMARY KEY (`%s`)", s.primaryKey.name))
	lines = append(lines, foreign...)

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);")
	return b.String()
}

// DropDDL renders the matching DROP TABLE statement.
func DropDDL(s *Schema) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS `%s`;", s.table)
}
