package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sprite-ai/revgate/internal/diff"
	"github.com/sprite-ai/revgate/internal/model"
)

// --- Helpers ---

func parseFile(t *testing.T, raw string) model.FileChange {
	t.Helper()
	ds, err := diff.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	files := ds.Changeset().Files()
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	return files[0]
}

// newFileDiff builds a diff that adds path with the given lines.
func newFileDiff(path string, lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\nnew file mode 100644\n--- /dev/null\n+++ b/%s\n", path, path, path)
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", len(lines))
	for _, l := range lines {
		b.WriteString("+" + l + "\n")
	}
	return b.String()
}

func byCategory(findings []model.Finding) map[string][]model.Finding {
	out := make(map[string][]model.Finding)
	for _, f := range findings {
		out[f.Category] = append(out[f.Category], f)
	}
	return out
}

func containsCI(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// --- Dependency detection tests ---

const depDiff = `diff --git a/go.mod b/go.mod
index abc1234..def5678 100644
--- a/go.mod
+++ b/go.mod
@@ -3,4 +3,6 @@ module example.com/myapp
 go 1.21

 require (
+	github.com/newdep/foo v1.2.3
+	github.com/anotherdep/bar v0.1.0
 	github.com/existing/dep v1.0.0
 )
`

func TestNewDependencyPass(t *testing.T) {
	findings := NewDependencyPass(parseFile(t, depDiff), nil)

	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %v", len(findings), findings)
	}

	for _, f := range findings {
		if f.Category != "new-dependency" {
			t.Errorf("expected category new-dependency, got %q", f.Category)
		}
		if f.Severity != model.SeverityMedium {
			t.Errorf("expected medium severity, got %s", f.Severity)
		}
	}
	if !containsCI(findings[0].Message, "github.com/newdep/foo") {
		t.Errorf("unexpected message %q", findings[0].Message)
	}
}

const npmDiff = `diff --git a/package.json b/package.json
index abc1234..def5678 100644
--- a/package.json
+++ b/package.json
@@ -5,3 +5,6 @@
   "dependencies": {
     "express": "^4.0.0",
+    "lodash": "^4.17.21",
+    "axios": "^1.6.0",
+    "overrides": {
   }
`

func TestNpmDependencyDetection(t *testing.T) {
	findings := NewDependencyPass(parseFile(t, npmDiff), nil)
	if len(findings) != 2 {
		t.Fatalf("expected 2 npm findings, got %d: %v", len(findings), findings)
	}
}

func TestLockfileChange(t *testing.T) {
	f := parseFile(t, newFileDiff("go.sum", []string{
		"github.com/newdep/foo v1.2.3 h1:abc=",
		"github.com/newdep/foo v1.2.3/go.mod h1:def=",
	}))

	findings := NewDependencyPass(f, nil)
	if len(findings) != 1 {
		t.Fatalf("expected 1 lockfile finding, got %d: %v", len(findings), findings)
	}
	if findings[0].Category != "lockfile-change" || !findings[0].Lines.FileLevel() {
		t.Errorf("unexpected finding %v", findings[0])
	}
}

// --- Security tests ---

const secDiff = `diff --git a/client.go b/client.go
index abc1234..def5678 100644
--- a/client.go
+++ b/client.go
@@ -10,3 +10,7 @@ func connect() {
 	x := 1
 	y := 2
 	z := 3
+	password := "hunter2secret"
+	tls := &tls.Config{InsecureSkipVerify: true}
+	cmd := exec.Command("bash", "-c", userInput)
+	sum := md5.Sum(data)
`

func TestSecurityPass(t *testing.T) {
	findings := SecurityPass(parseFile(t, secDiff), nil)
	cats := byCategory(findings)

	want := map[string]model.Severity{
		"hardcoded-credential": model.SeverityCritical,
		"insecure-transport":   model.SeverityHigh,
		"command-execution":    model.SeverityHigh,
		"weak-crypto":          model.SeverityMedium,
	}
	for cat, sev := range want {
		got := cats[cat]
		if len(got) != 1 {
			t.Errorf("expected 1 %s finding, got %d", cat, len(got))
			continue
		}
		if got[0].Severity != sev {
			t.Errorf("%s: expected %s, got %s", cat, sev, got[0].Severity)
		}
	}

	cred := cats["hardcoded-credential"][0]
	if cred.Lines.Start != 13 {
		t.Errorf("expected credential on line 13, got %d", cred.Lines.Start)
	}
	if strings.Contains(cred.Message, "hunter2secret") {
		t.Errorf("credential leaked into message: %q", cred.Message)
	}
}

func TestSecurityPassEnvLookupIsClean(t *testing.T) {
	f := parseFile(t, newFileDiff("auth.go", []string{
		"package main",
		"",
		`import "os"`,
		"",
		"func getToken() string {",
		`	return os.Getenv("API_TOKEN")`,
		"}",
	}))

	if findings := SecurityPass(f, nil); len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}

// --- Correctness tests ---

const sqlDiff = `diff --git a/app/db.py b/app/db.py
new file mode 100644
--- /dev/null
+++ b/app/db.py
@@ -0,0 +1,6 @@
+DB_PASSWORD = "hunter2secret"
+
+def find_user(cursor, name):
+    query = "SELECT * FROM users WHERE name = '" + name + "'"
+    cursor.execute(query)
+    return cursor.fetchone()
`

func TestCorrectnessPassSQLConcat(t *testing.T) {
	findings := CorrectnessPass(parseFile(t, sqlDiff), nil)

	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %v", len(findings), findings)
	}
	f := findings[0]
	if f.Category != "sql-injection" || f.Severity != model.SeverityHigh {
		t.Errorf("unexpected finding %v", f)
	}
	if f.Lines.Start != 4 {
		t.Errorf("expected line 4, got %d", f.Lines.Start)
	}
}

func TestCorrectnessPassParameterizedQuery(t *testing.T) {
	f := parseFile(t, newFileDiff("db.go", []string{
		`	db.Exec("DELETE FROM users WHERE id = ?", id)`,
		`	rows, err := db.Query("SELECT name FROM users WHERE id = $1", id)`,
	}))

	if findings := CorrectnessPass(f, nil); len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}

const antiDiff = `diff --git a/handler.py b/handler.py
new file mode 100644
--- /dev/null
+++ b/handler.py
@@ -0,0 +1,14 @@
+def handle():
+    try:
+        do_something()
+    except:
+        pass
+
+# def old_handler():
+#     return None
+
+# TODO: clean this up later
+# FIXME: this is a hack
+
+def process():
+    return True
`

func TestCorrectnessPassBroadException(t *testing.T) {
	findings := CorrectnessPass(parseFile(t, antiDiff), nil)

	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %v", len(findings), findings)
	}
	if findings[0].Category != "error-handling" || findings[0].Lines.Start != 4 {
		t.Errorf("unexpected finding %v", findings[0])
	}
}

// --- Complexity and maintainability tests ---

func longFunction(bodyLines int) []string {
	lines := []string{"package main", "", "func big() {"}
	for i := 0; i < bodyLines; i++ {
		lines = append(lines, fmt.Sprintf("\tx += %d", i))
	}
	return append(lines, "}")
}

func TestComplexityPassFunctionLength(t *testing.T) {
	f := parseFile(t, newFileDiff("big.go", longFunction(60)))

	cats := byCategory(ComplexityPass(f, nil))
	got := cats["function-length"]
	if len(got) != 1 {
		t.Fatalf("expected 1 function-length finding, got %v", got)
	}
	if got[0].Severity != model.SeverityMedium {
		t.Errorf("expected medium, got %s", got[0].Severity)
	}
	if got[0].Lines != (model.LineRange{Start: 3, End: 64}) {
		t.Errorf("expected range 3-64, got %s", got[0].Lines)
	}
	if !containsCI(got[0].Message, "big") {
		t.Errorf("expected function name in message, got %q", got[0].Message)
	}
}

func TestComplexityPassConfigLimit(t *testing.T) {
	f := parseFile(t, newFileDiff("big.go", longFunction(60)))

	findings := ComplexityPass(f, map[string]string{"max_function_lines": "100"})
	if len(byCategory(findings)["function-length"]) != 0 {
		t.Errorf("expected no function-length finding with raised limit, got %v", findings)
	}
}

func TestComplexityPassNesting(t *testing.T) {
	f := parseFile(t, newFileDiff("deep.py", []string{
		"def f():",
		strings.Repeat("    ", 6) + "x = 1",
		strings.Repeat("    ", 7) + "y = 2",
		"    return x",
	}))

	got := byCategory(ComplexityPass(f, nil))["nesting-depth"]
	if len(got) != 1 {
		t.Fatalf("expected one nesting finding for the run, got %v", got)
	}
	if got[0].Lines.Start != 2 || got[0].Severity != model.SeverityLow {
		t.Errorf("unexpected finding %v", got[0])
	}
}

func TestMaintainabilityPassLongFunction(t *testing.T) {
	f := parseFile(t, newFileDiff("big.go", longFunction(60)))

	got := byCategory(MaintainabilityPass(f, nil))["long-function"]
	if len(got) != 1 {
		t.Fatalf("expected 1 long-function finding, got %v", got)
	}
	if got[0].Severity != model.SeverityLow || got[0].Lines != (model.LineRange{Start: 3, End: 3}) {
		t.Errorf("unexpected finding %v", got[0])
	}
}

func TestMaintainabilityPass(t *testing.T) {
	cats := byCategory(MaintainabilityPass(parseFile(t, antiDiff), nil))

	if len(cats["commented-code"]) != 2 {
		t.Errorf("expected 2 commented-code findings, got %v", cats["commented-code"])
	}
	todos := cats["todo-marker"]
	if len(todos) != 2 {
		t.Fatalf("expected 2 todo-marker findings, got %v", todos)
	}
	if !containsCI(todos[0].Message, "TODO") || !containsCI(todos[1].Message, "FIXME") {
		t.Errorf("unexpected markers: %v", todos)
	}
}

const dupDiff = `diff --git a/a.go b/a.go
new file mode 100644
--- /dev/null
+++ b/a.go
@@ -0,0 +1,12 @@
+func processA(x int) int {
+	result := x * 2
+	result = result + 1
+	result = result / 3
+	return result
+}
+func processB(x int) int {
+	result := x * 2
+	result = result + 1
+	result = result / 3
+	return result
+}
`

func TestDuplicationDetection(t *testing.T) {
	got := byCategory(MaintainabilityPass(parseFile(t, dupDiff), nil))["duplicate-code"]

	if len(got) != 1 {
		t.Fatalf("expected 1 duplication finding, got %v", got)
	}
	if got[0].Lines.Start != 8 || !containsCI(got[0].Message, "line 2") {
		t.Errorf("unexpected finding %v", got[0])
	}
}

// --- Schema change tests ---

const schemaDiffMigration = `diff --git a/migrations/001_create_users.sql b/migrations/001_create_users.sql
new file mode 100644
--- /dev/null
+++ b/migrations/001_create_users.sql
@@ -0,0 +1,6 @@
+CREATE TABLE users (
+    id SERIAL PRIMARY KEY,
+    name TEXT NOT NULL,
+    email TEXT UNIQUE
+);
+DROP TABLE legacy_users;
`

const schemaDiffOpenAPI = `diff --git a/api/openapi.yaml b/api/openapi.yaml
index abc1234..def5678 100644
--- a/api/openapi.yaml
+++ b/api/openapi.yaml
@@ -10,3 +10,6 @@ paths:
   /health:
     get:
       summary: Health check
+  /users:
+    get:
+      summary: List users
`

func TestSchemaChangePass(t *testing.T) {
	cats := byCategory(SchemaChangePass(parseFile(t, schemaDiffMigration), nil))

	files := cats["schema-file"]
	if len(files) != 1 || !files[0].Lines.FileLevel() || !containsCI(files[0].Message, "migration") {
		t.Errorf("expected one file-level migration finding, got %v", files)
	}
	if ddl := cats["ddl"]; len(ddl) != 1 || ddl[0].Lines.Start != 1 {
		t.Errorf("expected CREATE TABLE on line 1, got %v", ddl)
	}
	drop := cats["destructive-ddl"]
	if len(drop) != 1 || drop[0].Severity != model.SeverityCritical || drop[0].Lines.Start != 6 {
		t.Errorf("expected critical DROP TABLE on line 6, got %v", drop)
	}
}

func TestSchemaChangePassOpenAPI(t *testing.T) {
	findings := SchemaChangePass(parseFile(t, schemaDiffOpenAPI), nil)

	if len(findings) != 1 || !containsCI(findings[0].Message, "OpenAPI") {
		t.Errorf("expected a single OpenAPI finding, got %v", findings)
	}
}

// --- Deleted code tests ---

const deletedDiff = `diff --git a/main.go b/main.go
index abc1234..def5678 100644
--- a/main.go
+++ b/main.go
@@ -1,8 +1,5 @@
 package main

-func oldHelper(x int) int {
-	return x * 2
-}
-
-func deprecatedFunc() {
-}
+func newHelper(x int) int {
+	return x * 3
+}
`

func TestDeletedCodePass(t *testing.T) {
	findings := DeletedCodePass(parseFile(t, deletedDiff), nil)

	if len(findings) != 2 {
		t.Fatalf("expected 2 deleted function findings, got %d: %v", len(findings), findings)
	}
	if !containsCI(findings[0].Message, "oldHelper") || findings[0].Lines.Start != 3 {
		t.Errorf("unexpected first finding %v", findings[0])
	}
	if !containsCI(findings[1].Message, "deprecatedFunc") || findings[1].Lines.Start != 7 {
		t.Errorf("unexpected second finding %v", findings[1])
	}
	for _, f := range findings {
		if f.Severity != model.SeverityLow {
			t.Errorf("expected low severity without test references, got %s", f.Severity)
		}
	}
}

func TestDeletedCodePassTestReferences(t *testing.T) {
	dir := t.TempDir()
	test := "package main\n\nfunc TestOld(t *testing.T) { oldHelper(2) }\n"
	if err := os.WriteFile(filepath.Join(dir, "main_test.go"), []byte(test), 0o644); err != nil {
		t.Fatal(err)
	}

	findings := DeletedCodePass(parseFile(t, deletedDiff), map[string]string{"repo_dir": dir})

	cats := byCategory(findings)
	tested := cats["deleted-tested-function"]
	if len(tested) != 1 || tested[0].Severity != model.SeverityHigh {
		t.Fatalf("expected one high finding for oldHelper, got %v", tested)
	}
	if !containsCI(tested[0].Message, "main_test.go") {
		t.Errorf("expected test file in message, got %q", tested[0].Message)
	}
	if len(cats["deleted-function"]) != 1 {
		t.Errorf("expected deprecatedFunc to stay low, got %v", cats["deleted-function"])
	}
}

// --- Blast radius tests ---

func TestBlastRadiusPass(t *testing.T) {
	f := parseFile(t, newFileDiff("billing.go", []string{
		"func computeTotal(items []Item) int {",
		"	return 0",
		"}",
	}))

	if findings := BlastRadiusPass(f, nil); findings != nil {
		t.Errorf("expected no findings without repo_dir, got %v", findings)
	}

	tests := []struct {
		name string
		refs int
		want model.Severity
		none bool
	}{
		{name: "few", refs: 3, none: true},
		{name: "medium", refs: 7, want: model.SeverityMedium},
		{name: "high", refs: 20, want: model.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			caller := strings.Repeat("x := computeTotal(items)\n", tt.refs)
			if err := os.WriteFile(filepath.Join(dir, "caller.go"), []byte(caller), 0o644); err != nil {
				t.Fatal(err)
			}

			findings := BlastRadiusPass(f, map[string]string{"repo_dir": dir})
			if tt.none {
				if len(findings) != 0 {
					t.Errorf("expected no findings, got %v", findings)
				}
				return
			}
			if len(findings) != 1 || findings[0].Severity != tt.want {
				t.Errorf("expected one %s finding, got %v", tt.want, findings)
			}
		})
	}
}

// --- Docs and hygiene tests ---

func TestDocumentationPass(t *testing.T) {
	f := parseFile(t, newFileDiff("README.md", []string{
		"#Title",
		"Some text ",
		"See [the guide]() for details.",
		"```",
		"#not a heading",
		"```",
		"Hard break  ",
	}))

	cats := byCategory(DocumentationPass(f, nil))
	for _, cat := range []string{"heading-format", "trailing-whitespace", "empty-link"} {
		if len(cats[cat]) != 1 {
			t.Errorf("expected 1 %s finding, got %v", cat, cats[cat])
		}
	}
	for _, f := range DocumentationPass(f, nil) {
		if f.Severity != model.SeverityLow {
			t.Errorf("expected low severity, got %s", f.Severity)
		}
	}
}

func TestHygienePass(t *testing.T) {
	f := parseFile(t, newFileDiff("merge.py", []string{
		"<<<<<<< HEAD",
		"x = 1",
		"=======",
		"x = 2",
		">>>>>>> feature",
		"breakpoint()",
	}))

	cats := byCategory(HygienePass(f, nil))
	if got := cats["merge-conflict"]; len(got) != 3 || got[0].Severity != model.SeverityCritical {
		t.Errorf("expected 3 critical conflict markers, got %v", got)
	}
	if got := cats["debug-statement"]; len(got) != 1 || got[0].Lines.Start != 6 {
		t.Errorf("expected debug statement on line 6, got %v", got)
	}
}

func TestHygienePassSetextHeading(t *testing.T) {
	f := parseFile(t, newFileDiff("README.md", []string{"Title", "=======", "", "Body"}))

	if findings := HygienePass(f, nil); len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}

func TestHygienePassLargeChange(t *testing.T) {
	f := parseFile(t, newFileDiff("data.txt", longFunction(20)))

	got := byCategory(HygienePass(f, map[string]string{"max_changed_lines": "10"}))["large-change"]
	if len(got) != 1 || !got[0].Lines.FileLevel() {
		t.Errorf("expected one file-level large-change finding, got %v", got)
	}
}

// --- Invoker tests ---

func TestBuiltin(t *testing.T) {
	inv, err := Builtin("correctness")
	if err != nil {
		t.Fatal(err)
	}

	f := parseFile(t, sqlDiff)
	findings, err := inv.Invoke(context.Background(), View{Analyzer: "sql", Files: []model.FileChange{f}})
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 || findings[0].Analyzer != "sql" {
		t.Errorf("expected findings attributed to the invoking analyzer, got %v", findings)
	}

	if _, err := Builtin("nope"); !errors.Is(err, ErrUnknownBuiltin) {
		t.Errorf("expected ErrUnknownBuiltin, got %v", err)
	}
}

func TestBuiltinCancelled(t *testing.T) {
	inv, err := Builtin("security")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = inv.Invoke(ctx, View{Analyzer: "security", Files: []model.FileChange{parseFile(t, secDiff)}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBuiltinNames(t *testing.T) {
	names := BuiltinNames()
	if len(names) != len(builtinPasses) {
		t.Fatalf("expected %d names, got %d", len(builtinPasses), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
}
