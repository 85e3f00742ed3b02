package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

// Schema/migration file patterns.
var schemaPatterns = []struct {
	pattern     *regexp.Regexp
	description string
}{
	{regexp.MustCompile(`(?i)migrat`), "database migration"},
	{regexp.MustCompile(`(?i)schema`), "schema definition"},
	{regexp.MustCompile(`\.proto$`), "protobuf definition"},
	{regexp.MustCompile(`(?i)(openapi|swagger)\.(ya?ml|json)$`), "OpenAPI spec"},
	{regexp.MustCompile(`(?i)graphql$`), "GraphQL schema"},
	{regexp.MustCompile(`\.prisma$`), "Prisma schema"},
	{regexp.MustCompile(`(?i)alembic.*\.py$`), "Alembic migration"},
	{regexp.MustCompile(`(?i)flyway`), "Flyway migration"},
	{regexp.MustCompile(`(?i)knex.*migrat`), "Knex migration"},
	{regexp.MustCompile(`(?i)sequel.*migrat`), "Sequel migration"},
	{regexp.MustCompile(`(?i)active_record.*migrat`), "ActiveRecord migration"},
	{regexp.MustCompile(`(?i)ecto.*migrat`), "Ecto migration"},
}

// Destructive DDL loses data when applied.
var destructiveDDLPatterns = compilePatterns(
	`(?i)\bDROP\s+(TABLE|COLUMN|SCHEMA|DATABASE)\b`,
	`(?i)\bTRUNCATE\s+(TABLE\s+)?\w`,
	`(?i)\bDELETE\s+FROM\s+\w+\s*;?\s*$`,
)

// SQL DDL keywords in added lines.
var ddlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(CREATE|ALTER|DROP)\s+(TABLE|INDEX|VIEW|SCHEMA|DATABASE|TYPE|SEQUENCE)\b`),
	regexp.MustCompile(`(?i)\bADD\s+COLUMN\b`),
	regexp.MustCompile(`(?i)\bDROP\s+COLUMN\b`),
	regexp.MustCompile(`(?i)\bRENAME\s+(TABLE|COLUMN)\b`),
	regexp.MustCompile(`(?i)\bMODIFY\s+COLUMN\b`),
}

// SchemaChangePass detects changes to database schemas, migrations and API
// specs. The file itself is reported once at file level; DDL statements are
// reported per line, destructive ones as critical.
func SchemaChangePass(f model.FileChange, _ map[string]string) []model.Finding {
	var findings []model.Finding

	for _, sp := range schemaPatterns {
		if sp.pattern.MatchString(f.Path) {
			findings = append(findings, model.Finding{
				Category: "schema-file",
				Severity: model.SeverityLow,
				File:     f.Path,
				Message:  fmt.Sprintf("Changes to %s file", sp.description),
			})
			break
		}
	}

	for _, line := range addedLines(f, true) {
		text := strings.TrimSpace(line.Text)
		if matchesAny(destructiveDDLPatterns, line.Text) {
			findings = append(findings, model.Finding{
				Category: "destructive-ddl",
				Severity: model.SeverityCritical,
				File:     f.Path,
				Lines:    lineAt(line.NewNum),
				Message:  fmt.Sprintf("Destructive DDL statement: %s", text),
				Fix:      "Stage the removal behind a backfill and a reversible migration.",
			})
			continue
		}
		if matchesAny(ddlPatterns, line.Text) {
			findings = append(findings, model.Finding{
				Category: "ddl",
				Severity: model.SeverityMedium,
				File:     f.Path,
				Lines:    lineAt(line.NewNum),
				Message:  fmt.Sprintf("DDL statement: %s", text),
			})
		}
	}

	return findings
}
