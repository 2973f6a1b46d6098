// backend.go - Registriert alle eingebauten Backends per Blank-Import
package backend

import (
	_ "github.com/louis-chevallier/stylegan/ml/backend/cpu"
)
