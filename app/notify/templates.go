package notify

const htmlHead = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body {
				font-family: "Arial";
				font-size: 1.0em;
			}
			ul {
				margin-top: -0.5em;
				margin-left: -0.5em;
			}
			pre {
				padding: 0.6em;
				font-size: 0.7em;
				background-color: #E8E2A0;
				font-family: "Menlo";
				overflow-x: auto;
				white-space: pre-wrap;
				word-wrap: break-word;
			}
			.bold {
				color: #882828;
				font-weight: 900;
			}
		</style>
	</head>
`

const jobList = `		<ul>
			<li>Job: <span class="bold">{{.ID}}</span></li>
			<li>Package: <span class="bold">{{.Name}}</span></li>
			<li>Version: <span class="bold">{{.Version}}</span></li>
			<li>Status: <span class="bold">{{.Status}}</span></li>
		</ul>
`

var defaultErrorTemplate = htmlHead + `
	<body>
		<p>Dashboard job failed, reported by <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
` + jobList + `
		<pre>
{{.Error}}
		</pre>
	</body>
</html>
`

var defaultCompletionTemplate = htmlHead + `
	<body>
		<p>Dashboard job completed, reported by <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
` + jobList + `
	</body>
</html>
`
