package main

const formPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>formgate</title>
<style>
body { font-family: sans-serif; max-width: 40rem; margin: 2rem auto; }
label { display: block; margin-top: 0.75rem; }
input, textarea { width: 100%; padding: 0.4rem; }
button { margin-top: 1rem; padding: 0.5rem 1.5rem; }
</style>
</head>
<body>
<h1>Submit</h1>
<form method="POST" action="/submit">
<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
<input type="hidden" name="research_metadata" id="research_metadata" value="">
<label>Username <input type="text" name="username" autocomplete="username"></label>
<label>Email <input type="email" name="email" autocomplete="email"></label>
<label>Phone <input type="tel" name="phone" autocomplete="tel"></label>
<label>Address <input type="text" name="address" autocomplete="street-address"></label>
<label>Card number <input type="text" name="card_number" autocomplete="cc-number"></label>
<label>Comment <textarea name="comment" rows="3"></textarea></label>
<button type="submit">Send</button>
</form>
</body>
</html>
`

const viewPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>formgate - captured data</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4rem; text-align: left; vertical-align: top; }
.flag { color: #b00; font-weight: bold; }
</style>
</head>
<body>
<h1>Captured submissions</h1>
<p>
Total: {{.Total}} &middot;
Autofill used: {{.AutofillUsed}} &middot;
Suspicious: {{.Suspicious}} &middot;
Blocked clients: {{.BlockedClients}}
</p>
<table>
<tr><th>ID</th><th>Time</th><th>Client</th><th>User agent</th><th>Flags</th><th>Fields</th></tr>
{{range .Records}}
<tr>
<td>{{.ID}}</td>
<td>{{.Timestamp}}</td>
<td>{{.ClientAddress}}</td>
<td>{{.UserAgent}}</td>
<td>{{if .IsSuspicious}}<span class="flag">suspicious</span>{{end}} {{if .AutofillUsed}}autofill{{end}}</td>
<td>{{range $k, $v := .Fields}}{{$k}}={{$v}}<br>{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`
