package smtp_mailer

import (
	"html/template"

	"github.com/user/valuation-service/pkg/utils"
)

// topRows is how many listings the email body shows; the attachments carry the rest.
const topRows = 20

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc":      func(i int) int { return i + 1 },
	"truncate": utils.Truncate,
}).Parse(`<html>
<head>
<style>
	body { font-family: Arial, sans-serif; color: #333; }
	.header { background-color: #2c3e50; color: white; padding: 20px; border-radius: 5px; }
	.summary { background-color: #ecf0f1; padding: 15px; margin: 20px 0; border-left: 4px solid #3498db; }
	table { width: 100%; border-collapse: collapse; margin: 20px 0; }
	th, td { border: 1px solid #bdc3c7; padding: 10px; text-align: left; }
	th { background-color: #34495e; color: white; }
	tr:nth-child(even) { background-color: #ecf0f1; }
	.footer { color: #7f8c8d; font-size: 12px; margin-top: 30px; text-align: center; }
</style>
</head>
<body>
<div class="header">
	<h1>Car Valuation Report</h1>
	<p>Report generated: {{.Generated}}</p>
</div>
<div class="summary">
	<h2>Summary</h2>
	<p><strong>{{.Summary.TotalCars}}</strong> total cars,
	<strong>{{.Summary.PlatesDetected}}</strong> plates detected,
	<strong>{{.Summary.ValuationsObtained}}</strong> valuations obtained</p>
	<h3>By Source</h3>
	<ul>{{range $source, $count := .Summary.Sources}}<li>{{$source}}: {{$count}}</li>{{end}}</ul>
	{{- if .SourceErrors}}
	<h3>Unavailable Sources</h3>
	<ul>{{range $source, $reason := .SourceErrors}}<li>{{$source}}: {{$reason}}</li>{{end}}</ul>
	{{- end}}
</div>
<h2>Top Results (showing {{len .Rows}} of {{.Summary.TotalCars}})</h2>
<table>
	<tr><th>#</th><th>Source</th><th>Title</th><th>Price</th><th>Mileage</th><th>Plate</th><th>Valuation</th><th>Link</th></tr>
	{{- range $i, $car := .Rows}}
	<tr>
		<td>{{inc $i}}</td>
		<td>{{$car.Source}}</td>
		<td>{{truncate $car.Title 40}}</td>
		<td>{{$car.Price}}</td>
		<td>{{or $car.Mileage "N/A"}}</td>
		<td>{{or $car.DetectedPlate "N/A"}}</td>
		<td>{{or $car.Valuation "N/A"}}</td>
		<td>{{if $car.Link}}<a href="{{$car.Link}}" target="_blank">View</a>{{else}}N/A{{end}}</td>
	</tr>
	{{- end}}
</table>
<div class="footer">
	<p>Full detailed results attached as JSON and CSV files</p>
</div>
</body>
</html>
`))
