// prognos is the command-line front end of the psychiatric prediction service.
//
// It builds a prediction backend (mock or cloud) from a YAML file and PROGNOS_*
// environment variables and runs single operations against it, or hosts a
// backend with metrics, retention and configuration hot reload.
//
// Usage:
//
//	# Predict relapse risk with the mock backend
//	PROGNOS_SERVICE_TYPE=mock prognos predict risk --patient p-104 --risk-type relapse
//
//	# Explain a stored prediction
//	prognos importance --config prognos.yaml --patient p-104 --model relapse_risk --prediction <id>
//
//	# Validate a configuration file
//	prognos config validate --config prognos.yaml
//
//	# Host a backend and reload it when the file changes
//	prognos watch --config prognos.yaml
package main

func main() {
	Execute()
}
