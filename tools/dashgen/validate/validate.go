// Package validate checks generated dashboards and rule files: every PromQL
// expression must parse and reference only known metric names.
package validate

import (
	"fmt"
	"strings"

	"github.com/grafana/grafana-foundation-sdk/go/cog/variants"
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/prometheus"
	"github.com/prometheus/prometheus/promql/parser"

	"github.com/donaldgifford/ebay-seller-sync/tools/dashgen/rules"
)

// Histogram and summary series are exported under the base metric name.
var seriesSuffixes = []string{"_bucket", "_sum", "_count"}

// Result collects validation findings. Errors fail generation, warnings
// are reported.
type Result struct {
	Errors   []string
	Warnings []string
}

// Ok reports whether no errors were found.
func (r *Result) Ok() bool {
	return len(r.Errors) == 0
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Dashboard validates every Prometheus target of every panel, including
// panels nested in rows.
func Dashboard(d dashboard.Dashboard, known map[string]bool) Result {
	var res Result
	for _, p := range d.Panels {
		if p.Panel != nil {
			checkPanel(&res, *p.Panel, known)
		}
		if p.RowPanel != nil {
			for _, inner := range p.RowPanel.Panels {
				checkPanel(&res, inner, known)
			}
		}
	}
	return res
}

// Rules validates a rule CR. Names recorded by earlier rules are known to
// later ones.
func Rules(cr rules.PrometheusRule, known map[string]bool) Result {
	var res Result
	names := make(map[string]bool, len(known))
	for k, v := range known {
		names[k] = v
	}

	for _, g := range cr.Spec.Groups {
		for _, r := range g.Rules {
			id := r.Alert
			if r.Record != "" {
				id = r.Record
			}
			if id == "" {
				res.errorf("group %s: rule with neither record nor alert", g.Name)
				continue
			}
			Expr(&res, id, r.Expr, names)
			if r.Record != "" {
				names[r.Record] = true
			}
			if r.Alert != "" && r.Labels["severity"] == "" {
				res.warnf("%s: alert has no severity label", id)
			}
		}
	}
	return res
}

// Expr parses one PromQL expression and checks its selectors against known.
func Expr(res *Result, where, expr string, known map[string]bool) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		res.errorf("%s: invalid PromQL %q: %v", where, expr, err)
		return
	}
	parser.Inspect(node, func(n parser.Node, _ []parser.Node) error {
		vs, ok := n.(*parser.VectorSelector)
		if !ok || vs.Name == "" {
			return nil
		}
		if !isKnown(vs.Name, known) {
			res.errorf("%s: unknown metric %q", where, vs.Name)
		}
		return nil
	})
}

func checkPanel(res *Result, p dashboard.Panel, known map[string]bool) {
	title := "(untitled)"
	if p.Title != nil {
		title = *p.Title
	}
	if len(p.Targets) == 0 {
		res.warnf("panel %q has no targets", title)
		return
	}
	for _, t := range p.Targets {
		expr, ok := promExpr(t)
		if !ok {
			res.warnf("panel %q has a non-Prometheus target", title)
			continue
		}
		Expr(res, "panel "+title, expr, known)
	}
}

func promExpr(t variants.Dataquery) (string, bool) {
	switch q := t.(type) {
	case *prometheus.Dataquery:
		return q.Expr, true
	case prometheus.Dataquery:
		return q.Expr, true
	default:
		return "", false
	}
}

func isKnown(name string, known map[string]bool) bool {
	if known[name] {
		return true
	}
	for _, s := range seriesSuffixes {
		if base, ok := strings.CutSuffix(name, s); ok && known[base] {
			return true
		}
	}
	return false
}
