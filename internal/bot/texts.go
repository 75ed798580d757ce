package bot

const (
	textWelcomeNew        = "Welcome! To get started I need your full name.\nPlease enter your first and last name:"
	textWelcomeBack       = "Hello! How can I help?\nSend a message describing your question or use the menu below."
	textAskFullNameAgain  = "Please enter your full name (first and last name):"
	textAskCompany        = "Thank you! Now enter your company name:"
	textAskShop           = "Enter the shop (location) you work at:"
	textAskRequired       = "This field cannot be empty. Please try again:"
	textRegistered        = "Thank you for registering! You can now create a ticket or send a message describing your question."
	textNeedRegistration  = "Please start with the /start command to register."
	textAskTitle          = "Enter the ticket title (up to 100 characters):"
	textTitleTooLong      = "The title is too long. Please enter a title shorter than 100 characters:"
	textNoActiveTicket    = "You have no active ticket. Let's create a new one.\n" + textAskTitle
	textAskDescription    = "Now describe your problem in detail:"
	textAskConfirmation   = "Please confirm creating the ticket (yes/no):"
	textCanceled          = "Ticket creation canceled."
	textNothingToConfirm  = "There is no ticket waiting for confirmation."
	textNoTickets         = "You have no open tickets yet."
	textChooseTicket      = "Choose a ticket:"
	textChooseWithButtons = "Please choose a ticket using the buttons above."
	textAddedToSelected   = "Message added to the selected ticket."
	textAddedToCurrent    = "Message added to your current ticket."
	textTextOnly          = "Only text messages are supported."

	textErrRemote     = "Our support systems are temporarily unavailable. Please try again later."
	textErrNotFound   = "Something went wrong. Please start again with /start."
	textErrTransition = "This ticket can no longer be changed."
	textErrInternal   = "An error occurred. Please try again."
)
