package database

// Registers the "mysql" driver.
import _ "github.com/go-sql-driver/mysql"
