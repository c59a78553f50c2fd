package sqlguard

import (
	"testing"
)

func refNames(refs []TableRef) []string {
	names := make([]string, len(refs))
	for i := range refs {
		names[i] = refs[i].Name()
	}
	return names
}

func TestScanTableRefs(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "simple from",
			sql:  "SELECT * FROM orders",
			want: []string{"orders"},
		},
		{
			name: "from with join",
			sql:  "SELECT * FROM orders o JOIN customers c ON o.customer_id = c.id",
			want: []string{"orders", "customers"},
		},
		{
			name: "dotted reference",
			sql:  "SELECT * FROM analytics.orders",
			want: []string{"analytics.orders"},
		},
		{
			name: "three part reference",
			sql:  "SELECT * FROM proj.ds.orders",
			want: []string{"proj.ds.orders"},
		},
		{
			name: "backquoted multi-part identifier",
			sql:  "SELECT * FROM `proj.ds.orders` WHERE x = 1",
			want: []string{"proj.ds.orders"},
		},
		{
			name: "double quoted parts",
			sql:  `SELECT * FROM "public"."Orders"`,
			want: []string{"public.Orders"},
		},
		{
			name: "comma separated from list",
			sql:  "SELECT * FROM orders, customers WHERE orders.customer_id = customers.id",
			want: []string{"orders", "customers"},
		},
		{
			name: "subquery is not a reference",
			sql:  "SELECT * FROM (SELECT * FROM orders) sub",
			want: []string{"orders"},
		},
		{
			name: "cte name excluded",
			sql:  "WITH recent AS (SELECT * FROM orders WHERE ts > now()) SELECT * FROM recent JOIN customers ON recent.customer_id = customers.id",
			want: []string{"orders", "customers"},
		},
		{
			name: "recursive cte excluded",
			sql:  "WITH RECURSIVE tree AS (SELECT * FROM nodes UNION ALL SELECT n.* FROM nodes n JOIN tree ON n.parent = tree.id) SELECT * FROM tree",
			want: []string{"nodes", "nodes"},
		},
		{
			name: "multiple ctes excluded",
			sql:  "WITH a AS (SELECT 1), b AS (SELECT * FROM orders) SELECT * FROM a JOIN b ON true",
			want: []string{"orders"},
		},
		{
			name: "unnest is not a reference",
			sql:  "SELECT * FROM orders, UNNEST(tags) AS tag",
			want: []string{"orders"},
		},
		{
			name: "table name inside string literal ignored",
			sql:  "SELECT * FROM orders WHERE note = 'from secrets'",
			want: []string{"orders"},
		},
		{
			name: "table name inside comment ignored",
			sql:  "SELECT * FROM orders -- FROM secrets\nWHERE id = 1",
			want: []string{"orders"},
		},
		{
			name: "block comment ignored",
			sql:  "SELECT * /* FROM secrets */ FROM orders",
			want: []string{"orders"},
		},
		{
			name: "update statement",
			sql:  "UPDATE orders SET status = 'done' WHERE id = 1",
			want: []string{"orders"},
		},
		{
			name: "insert into",
			sql:  "INSERT INTO orders (id) VALUES (1)",
			want: []string{"orders"},
		},
		{
			name: "left join",
			sql:  "SELECT * FROM orders LEFT JOIN customers ON orders.customer_id = customers.id",
			want: []string{"orders", "customers"},
		},
		{
			name: "no references",
			sql:  "SELECT 1",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := refNames(ScanTableRefs(tt.sql))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ref[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScanTableRefsAliases(t *testing.T) {
	refs := ScanTableRefs("SELECT * FROM orders o JOIN customers AS c ON o.customer_id = c.id")
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Alias != "o" {
		t.Errorf("first alias = %q, want o", refs[0].Alias)
	}
	if refs[1].Alias != "c" {
		t.Errorf("second alias = %q, want c", refs[1].Alias)
	}
}

func TestScanTableRefsKeywordNotAlias(t *testing.T) {
	refs := ScanTableRefs("SELECT * FROM orders WHERE id = 1")
	if len(refs) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(refs))
	}
	if refs[0].Alias != "" {
		t.Errorf("WHERE must not be taken as an alias, got %q", refs[0].Alias)
	}
}

func TestScanTableRefsSpans(t *testing.T) {
	sql := "SELECT * FROM orders WHERE id = 1"
	refs := ScanTableRefs(sql)
	if len(refs) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(refs))
	}
	if got := sql[refs[0].Start:refs[0].End]; got != "orders" {
		t.Errorf("span covers %q, want orders", got)
	}
}
