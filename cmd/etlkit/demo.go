package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"etlkit/internal/config"
	"etlkit/internal/dataset"
	"etlkit/internal/infrastructure"
	"etlkit/internal/pipeline"
	"etlkit/internal/transform"
)

// demoCSV is a small sales dataset with duplicates and missing values so the
// demo run exercises the cleaning steps.
const demoCSV = `order_id,product_name,category,region,quantity,unit_price
1001,Laptop Pro 15,Electronics,North,2,1299.00
1002,Wireless Mouse,Electronics,South,5,24.99
1003,Cotton T-Shirt,Clothing,East,10,14.50
1004,Laptop Pro 15,Electronics,West,1,1299.00
1004,Laptop Pro 15,Electronics,West,1,1299.00
1005,Office Chair,Furniture,North,3,189.95
1006,Desk Lamp,Furniture,South,,39.99
1007,Running Shoes,Clothing,East,4,89.90
1008,Mechanical Keyboard,Electronics,North,2,119.00
1009,Wool Sweater,Clothing,West,6,49.95
1010,Standing Desk,Furniture,East,1,449.00
1011,USB-C Hub,Electronics,South,8,34.50
1012,Running Shoes,Clothing,North,2,89.90
`

func runDemo(tracing bool) error {
	dir, err := os.MkdirTemp("", "etlkit-demo-")
	if err != nil {
		return err
	}
	dataPath := filepath.Join(dir, "sample_sales.csv")
	if err := os.WriteFile(dataPath, []byte(demoCSV), 0644); err != nil {
		return err
	}

	opts := []pipeline.Option{}
	var providers *infrastructure.TracingProviders
	if tracing {
		providers, err = infrastructure.InitializeTracing(
			&infrastructure.TracingConfig{Enabled: true, Exporter: "stdout"}, slog.Default())
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithTracer(providers.GetTracer()))
		defer providers.Shutdown(context.Background())
	}

	p := pipeline.New(opts...)
	ctx := infrastructure.ContextWithTraceID(context.Background())

	fmt.Println("[1/4] Extracting data from CSV...")
	if err := p.Extract(ctx, config.SourceConfig{Type: "csv", Path: dataPath}); err != nil {
		return err
	}

	fmt.Println("[2/4] Transforming data...")
	err = p.Transform(ctx,
		config.TransformConfig{RemoveDuplicates: true, HandleMissing: "drop"},
		pipeline.CalculatedColumn{
			Name: "total_amount",
			Fn: func(r transform.Row) interface{} {
				return r.Float("quantity") * r.Float("unit_price")
			},
		})
	if err != nil {
		return err
	}

	fmt.Println("[3/4] Generating analytics reports...")
	_, err = p.GenerateReport(ctx, config.ReportConfig{
		OutputDir: "reports",
		Title:     "Sales Analytics Dashboard",
		Charts: []config.ChartSpec{
			{Type: "bar", X: "category", Y: "total_amount", Title: "Revenue by Category"},
			{Type: "bar", X: "region", Y: "quantity", Title: "Sales Volume by Region"},
			{Type: "heatmap", Title: "Correlation Analysis"},
		},
	})
	if err != nil {
		return err
	}

	fmt.Println("[4/4] Pipeline summary:")
	summary := p.Summary()
	fmt.Printf("   rows processed: %d\n", summary.Rows)
	fmt.Printf("   columns: %s\n", strings.Join(summary.Columns, ", "))

	ds, err := p.Data()
	if err != nil {
		return err
	}
	if err := printRevenueBy(ctx, ds, "category"); err != nil {
		return err
	}
	if err := printRevenueBy(ctx, ds, "region"); err != nil {
		return err
	}

	fmt.Println("reports saved to: reports/")
	return nil
}

func printRevenueBy(ctx context.Context, ds *dataset.Dataset, groupCol string) error {
	// The transformer logs without a context, so bind the run's trace id
	// onto the logger itself.
	tr := transform.New(infrastructure.LoggerWithContext(ctx)).SetDataset(ds).
		Aggregate([]string{groupCol}, map[string]string{"total_amount": "sum"})
	grouped, err := tr.Dataset()
	if err != nil {
		return err
	}
	keys, err := grouped.Strings(groupCol)
	if err != nil {
		return err
	}
	totals, err := grouped.Floats("total_amount")
	if err != nil {
		return err
	}
	rows := make([]int, len(keys))
	for i := range rows {
		rows[i] = i
	}
	sort.Slice(rows, func(a, b int) bool { return totals[rows[a]] > totals[rows[b]] })

	fmt.Printf("revenue by %s:\n", groupCol)
	for _, i := range rows {
		fmt.Printf("   %s: $%.2f\n", keys[i], totals[i])
	}
	return nil
}
